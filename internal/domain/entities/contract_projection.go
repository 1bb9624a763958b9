package entities

// Severity is a display-agnostic styling tier for a status badge
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityNeutral Severity = "neutral"
	SeverityDanger  Severity = "danger"
)

// StatusBadge is the semantic label a UI renders for a contract status
type StatusBadge struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// BadgeFor maps a status onto its display label and severity tier
func BadgeFor(status ContractStatus) StatusBadge {
	switch status {
	case ContractStatusPendingSignature:
		return StatusBadge{Label: "pending", Severity: SeverityWarning}
	case ContractStatusActive:
		return StatusBadge{Label: "active", Severity: SeveritySuccess}
	case ContractStatusClosed:
		return StatusBadge{Label: "done", Severity: SeverityNeutral}
	case ContractStatusCanceled:
		return StatusBadge{Label: "canceled", Severity: SeverityDanger}
	}
	return StatusBadge{Label: "unknown", Severity: SeverityNeutral}
}

// SignatureSummary reports which parties have signed
type SignatureSummary struct {
	ClientSigned bool   `json:"clientSigned"`
	LawyerSigned bool   `json:"lawyerSigned"`
	AllSigned    bool   `json:"allSigned"`
	PendingRoles []Role `json:"pendingRoles"`
}

// SignatureSummary derives the signature state of the contract
func (c *Contract) SignatureSummary() SignatureSummary {
	s := SignatureSummary{
		ClientSigned: c.SignedClient != nil,
		LawyerSigned: c.SignedLawyer != nil,
		PendingRoles: make([]Role, 0, 2),
	}
	s.AllSigned = s.ClientSigned && s.LawyerSigned
	if !s.ClientSigned {
		s.PendingRoles = append(s.PendingRoles, RoleClient)
	}
	if !s.LawyerSigned {
		s.PendingRoles = append(s.PendingRoles, RoleLawyer)
	}
	return s
}

// CanBeSignedBy reports whether userID may sign now. It uses the same
// predicate as the signing path so UI hints and enforcement agree.
func (c *Contract) CanBeSignedBy(userID string) bool {
	role, ok := c.RoleOf(userID)
	if !ok {
		return false
	}
	return c.CanSign(role)
}

// ContractView is the projected read model returned to callers
type ContractView struct {
	Contract       *Contract        `json:"contract"`
	Badge          StatusBadge      `json:"badge"`
	Signatures     SignatureSummary `json:"signatures"`
	FeeDescription string           `json:"feeDescription"`
	ViewerRole     Role             `json:"viewerRole,omitempty"`
	CanSign        bool             `json:"canSign"`
}

// Project builds the read model of c as seen by viewerID
func Project(c *Contract, viewerID string) *ContractView {
	if c == nil {
		return nil
	}
	role, _ := c.RoleOf(viewerID)
	return &ContractView{
		Contract:       c,
		Badge:          BadgeFor(c.Status),
		Signatures:     c.SignatureSummary(),
		FeeDescription: c.FeeModel.Format(),
		ViewerRole:     role,
		CanSign:        c.CanBeSignedBy(viewerID),
	}
}
