package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vsinha/needslist/pkg/application/services/lifecycle"
	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/interfaces/cli/output"
)

// TransitionConfig holds configuration for the transition command
type TransitionConfig struct {
	Operation string
	ID        string
	Actor     ActorConfig
	Version   int64
	Reason    string

	// Edits and Receipts are WAREHOUSE:ITEM=QTY
	Edits    []string
	Receipts []string

	// Comment is the review note; CommentLine optionally scopes it to
	// WAREHOUSE:ITEM
	Comment     string
	CommentLine string

	Output output.Config
}

// TransitionCommand applies one lifecycle operation to a stored list
type TransitionCommand struct {
	app    *App
	config TransitionConfig
}

// NewTransitionCommand creates a transition command
func NewTransitionCommand(app *App, config TransitionConfig) *TransitionCommand {
	return &TransitionCommand{app: app, config: config}
}

type operationFunc func(ctx context.Context, svc *lifecycle.Service, cmd lifecycle.Command, cfg TransitionConfig) (*entities.NeedsList, error)

func simple(op func(*lifecycle.Service, context.Context, lifecycle.Command) (*entities.NeedsList, error)) operationFunc {
	return func(ctx context.Context, svc *lifecycle.Service, cmd lifecycle.Command, _ TransitionConfig) (*entities.NeedsList, error) {
		return op(svc, ctx, cmd)
	}
}

var operations = map[lifecycle.Operation]operationFunc{
	lifecycle.OpSubmit:           simple((*lifecycle.Service).Submit),
	lifecycle.OpReviewStart:      simple((*lifecycle.Service).StartReview),
	lifecycle.OpApprove:          simple((*lifecycle.Service).Approve),
	lifecycle.OpReject:           simple((*lifecycle.Service).Reject),
	lifecycle.OpReturn:           simple((*lifecycle.Service).Return),
	lifecycle.OpEscalate:         simple((*lifecycle.Service).Escalate),
	lifecycle.OpStartPreparation: simple((*lifecycle.Service).StartPreparation),
	lifecycle.OpMarkDispatched:   simple((*lifecycle.Service).MarkDispatched),
	lifecycle.OpMarkCompleted:    simple((*lifecycle.Service).MarkCompleted),
	lifecycle.OpCancel:           simple((*lifecycle.Service).Cancel),
	lifecycle.OpReviewComments:   addComment,
	lifecycle.OpMarkReceived:     markReceived,
	lifecycle.OpEditLines:        editLines,
}

// OperationNames lists the operations the command accepts
func OperationNames() []string {
	names := make([]string, 0, len(operations))
	for op := range operations {
		names = append(names, string(op))
	}
	sort.Strings(names)
	return names
}

// Execute runs the operation and renders the updated list to w
func (c *TransitionCommand) Execute(ctx context.Context, w io.Writer) error {
	run, ok := operations[lifecycle.Operation(strings.ToLower(c.config.Operation))]
	if !ok {
		return fmt.Errorf("unknown operation %q (expected one of %s)", c.config.Operation, strings.Join(OperationNames(), ", "))
	}
	actor, err := c.config.Actor.Actor()
	if err != nil {
		return err
	}

	cmd := lifecycle.Command{
		NeedsListID: entities.NeedsListID(c.config.ID),
		Actor:       actor,
		Version:     c.config.Version,
		Reason:      c.config.Reason,
	}
	list, err := run(ctx, c.app.Lifecycle, cmd, c.config)
	if err != nil {
		return err
	}
	return output.NeedsList(w, list, c.config.Output)
}

func addComment(ctx context.Context, svc *lifecycle.Service, cmd lifecycle.Command, cfg TransitionConfig) (*entities.NeedsList, error) {
	comment := lifecycle.Comment{Text: cfg.Comment}
	if cfg.CommentLine != "" {
		key, err := parseKey(cfg.CommentLine)
		if err != nil {
			return nil, err
		}
		comment.WarehouseID, comment.ItemID = key.WarehouseID, key.ItemID
	}
	return svc.AddReviewComment(ctx, cmd, comment)
}

func markReceived(ctx context.Context, svc *lifecycle.Service, cmd lifecycle.Command, cfg TransitionConfig) (*entities.NeedsList, error) {
	receipts := make([]lifecycle.Receipt, 0, len(cfg.Receipts))
	for _, r := range cfg.Receipts {
		line, err := parseLineQuantity(r)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, lifecycle.Receipt{
			WarehouseID: line.key.WarehouseID,
			ItemID:      line.key.ItemID,
			Quantity:    line.quantity,
		})
	}
	return svc.MarkReceived(ctx, cmd, receipts...)
}

func editLines(ctx context.Context, svc *lifecycle.Service, cmd lifecycle.Command, cfg TransitionConfig) (*entities.NeedsList, error) {
	if len(cfg.Edits) == 0 {
		return nil, entities.NewValidationError("edits", "at least one --line edit is required")
	}
	edits := make([]lifecycle.LineEdit, 0, len(cfg.Edits))
	for _, e := range cfg.Edits {
		line, err := parseLineQuantity(e)
		if err != nil {
			return nil, err
		}
		edits = append(edits, lifecycle.LineEdit{
			WarehouseID: line.key.WarehouseID,
			ItemID:      line.key.ItemID,
			Quantity:    line.quantity,
		})
	}
	return svc.EditLines(ctx, cmd, edits)
}
