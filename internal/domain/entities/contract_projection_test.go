package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeFor(t *testing.T) {
	assert.Equal(t, StatusBadge{"pending", SeverityWarning}, BadgeFor(ContractStatusPendingSignature))
	assert.Equal(t, StatusBadge{"active", SeveritySuccess}, BadgeFor(ContractStatusActive))
	assert.Equal(t, StatusBadge{"done", SeverityNeutral}, BadgeFor(ContractStatusClosed))
	assert.Equal(t, StatusBadge{"canceled", SeverityDanger}, BadgeFor(ContractStatusCanceled))
	assert.Equal(t, "unknown", BadgeFor("archived").Label)
}

func TestSignatureSummary(t *testing.T) {
	c := newPending(t)
	s := c.SignatureSummary()
	assert.False(t, s.AllSigned)
	assert.Equal(t, []Role{RoleClient, RoleLawyer}, s.PendingRoles)

	c, _, _ = c.Sign(RoleLawyer, t0)
	s = c.SignatureSummary()
	assert.True(t, s.LawyerSigned)
	assert.Equal(t, []Role{RoleClient}, s.PendingRoles)

	c, _, _ = c.Sign(RoleClient, t0)
	s = c.SignatureSummary()
	assert.True(t, s.AllSigned)
	assert.Empty(t, s.PendingRoles)
	assert.NotNil(t, s.PendingRoles, "pendingRoles must encode as [] not null")
}

func TestCanBeSignedBy(t *testing.T) {
	c := newPending(t)
	assert.True(t, c.CanBeSignedBy("U1"))
	assert.True(t, c.CanBeSignedBy("L1"))
	assert.False(t, c.CanBeSignedBy("stranger"))
	assert.False(t, c.CanBeSignedBy(""))

	c, _, _ = c.Sign(RoleClient, t0)
	assert.False(t, c.CanBeSignedBy("U1"))
	assert.True(t, c.CanBeSignedBy("L1"))

	c, _, _ = c.Sign(RoleLawyer, t0)
	assert.False(t, c.CanBeSignedBy("U1"))
	assert.False(t, c.CanBeSignedBy("L1"))

	canceled, _, _ := newPending(t).Cancel(t0)
	assert.False(t, canceled.CanBeSignedBy("U1"))
	assert.False(t, canceled.CanBeSignedBy("L1"))
}

func TestProject(t *testing.T) {
	c := newPending(t)
	v := Project(c, "L1")
	require.NotNil(t, v)
	assert.Equal(t, RoleLawyer, v.ViewerRole)
	assert.True(t, v.CanSign)
	assert.Equal(t, "pending", v.Badge.Label)
	assert.Equal(t, "20% of the award on success", v.FeeDescription)

	outsider := Project(c, "someone")
	assert.Empty(t, outsider.ViewerRole)
	assert.False(t, outsider.CanSign)

	assert.Nil(t, Project(nil, "U1"))
}

func TestContractJSON_UnsignedTimestampsAreNull(t *testing.T) {
	raw, err := json.Marshal(newPending(t))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["signedClient"])
	assert.Contains(t, decoded, "signedClient")
	assert.Equal(t, "pending-signature", decoded["status"])
	fee := decoded["feeModel"].(map[string]any)
	assert.Equal(t, "success", fee["type"])
	assert.NotContains(t, fee, "value")
	assert.NotContains(t, fee, "rate")
}

func TestIsExternallyManaged(t *testing.T) {
	c := newPending(t)
	assert.False(t, IsExternallyManaged(c, "esign.example.com"))

	c.DocURL = "https://docs.lexmatch.local/contracts/1.pdf"
	assert.False(t, IsExternallyManaged(c, "esign.example.com"))

	c.DocURL = "https://ESIGN.example.com/envelopes/1/document"
	assert.True(t, IsExternallyManaged(c, "esign.example.com"))
	assert.False(t, IsExternallyManaged(c, ""))

	c.DocURL = ""
	c.EnvelopeID = "env-1"
	assert.True(t, IsExternallyManaged(c, ""))
	assert.False(t, IsExternallyManaged(nil, "esign.example.com"))
}

func TestTransitionRecord(t *testing.T) {
	c := newPending(t)
	_, tr, err := c.Sign(RoleClient, t0)
	require.NoError(t, err)

	rec := tr.Record(c.ID, c.ID, "U1", TransitionSourceAPI, t0.Add(time.Second))
	assert.Equal(t, ContractEventSigned, rec.Event)
	assert.Equal(t, "client", rec.Metadata["role"])
	assert.Equal(t, ContractStatusPendingSignature, rec.ToStatus)
	assert.Equal(t, TransitionSourceAPI, rec.Source)
}
