package entities

import "strings"

// InboundPolicy is the status vocabulary that decides which movements count
// as strict inbound, which donations feed Horizon B, and which fulfillments
// are excluded from burn-rate history. Status matching is case-insensitive.
type InboundPolicy struct {
	TransferStatuses            []string `yaml:"transfer_statuses"`
	DonationStatuses            []string `yaml:"donation_statuses"`
	ProcurementStatuses         []string `yaml:"procurement_statuses"`
	DonationPipelineStatuses    []string `yaml:"donation_pipeline_statuses"`
	ExcludedFulfillmentStatuses []string `yaml:"excluded_fulfillment_statuses"`
}

// DefaultInboundPolicy counts dispatched transfers, in-transit donations and
// shipped procurement; confirmed donations not yet moving feed Horizon B
func DefaultInboundPolicy() InboundPolicy {
	return InboundPolicy{
		TransferStatuses:            []string{"DISPATCHED"},
		DonationStatuses:            []string{"IN_TRANSIT"},
		ProcurementStatuses:         []string{"SHIPPED"},
		DonationPipelineStatuses:    []string{"CONFIRMED"},
		ExcludedFulfillmentStatuses: []string{"REJECTED", "CANCELLED"},
	}
}

// CountsAsInbound reports whether a record is confirmed-in-motion stock
func (p InboundPolicy) CountsAsInbound(r InboundRecord) bool {
	switch r.Kind {
	case InboundTransfer:
		return containsFold(p.TransferStatuses, r.Status)
	case InboundDonation:
		return containsFold(p.DonationStatuses, r.Status)
	case InboundProcurement:
		return containsFold(p.ProcurementStatuses, r.Status)
	default:
		return false
	}
}

// InDonationPipeline reports whether a donation is committed but not yet
// inbound, and so available to Horizon B
func (p InboundPolicy) InDonationPipeline(r InboundRecord) bool {
	return r.Kind == InboundDonation && containsFold(p.DonationPipelineStatuses, r.Status)
}

// QualifiesAsDemand reports whether a fulfillment counts toward burn rate
func (p InboundPolicy) QualifiesAsDemand(r FulfillmentRecord) bool {
	return !containsFold(p.ExcludedFulfillmentStatuses, r.Status)
}

func containsFold(values []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
