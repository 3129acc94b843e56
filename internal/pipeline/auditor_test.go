package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/llm"
	"github.com/theduckverse/refundhunter-backend/internal/repository"
	"github.com/theduckverse/refundhunter-backend/internal/rules"
)

const adjustments = "sku,quantity,reason\nABC-1,-3,Lost in warehouse\nXYZ-9,5,Customer order\n"

type fakeClassifier struct {
	mu       sync.Mutex
	requests []llm.ClassifyRequest
	payload  []any
	err      error
}

func (f *fakeClassifier) Classify(_ context.Context, req llm.ClassifyRequest) (any, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.payload, []byte(`{"claims":[]}`), nil
}

func newStore(t *testing.T) repository.AuditRunRepository {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, nil) })
	repo := repository.NewAuditRunRepository(db, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestAuditText_Heuristic(t *testing.T) {
	a, err := NewAuditor(DefaultPolicy(), nil)
	require.NoError(t, err)

	rep, err := a.AuditText(context.Background(), "inline", adjustments)
	require.NoError(t, err)

	assert.Equal(t, constants.RunStatusOK, rep.Status)
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, 1, rep.Candidates)
	assert.False(t, rep.Reused)
	require.Len(t, rep.Result.Claims, 1)

	c := rep.Result.Claims[0]
	assert.Equal(t, "ABC-1", c.SKU)
	assert.Equal(t, "Lost in warehouse", c.ClaimReason)
	assert.Equal(t, int64(3), c.Quantity)
	assert.Equal(t, "25.50", c.EstimatedValue.StringFixed(2))
	assert.Equal(t, constants.TransactionIDPlaceholder, c.TransactionID)
	assert.True(t, rep.Result.TotalEstimatedValue.Equal(decimal.RequireFromString("25.5")))

	require.Len(t, rep.Result.Messages, 1)
	assert.Contains(t, rep.Result.Messages[0].Message, "ABC-1")
}

func TestAuditText_EmptyInput(t *testing.T) {
	a, err := NewAuditor(DefaultPolicy(), nil)
	require.NoError(t, err)

	for _, in := range []string{"", "sku,quantity,reason", "\ufeff\n\n"} {
		rep, err := a.AuditText(context.Background(), "inline", in)
		require.NoError(t, err)
		assert.Equal(t, constants.RunStatusEmpty, rep.Status)
		assert.Empty(t, rep.Result.Claims)
		assert.True(t, rep.Result.TotalEstimatedValue.IsZero())
	}
}

func TestAuditText_OutOfRangeNumbersAreUnparseable(t *testing.T) {
	a, err := NewAuditor(DefaultPolicy(), nil)
	require.NoError(t, err)

	start := time.Now()
	rep, err := a.AuditText(context.Background(), "inline",
		"sku,quantity,reason,unit cost\nA-1,-1e-20000000,Lost,\nB-2,-2,Lost,1e20000000\n")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, 1, rep.Candidates)
	require.Len(t, rep.Result.Claims, 1)
	assert.Equal(t, "B-2", rep.Result.Claims[0].SKU)
	assert.Equal(t, "17.00", rep.Result.TotalEstimatedValue.StringFixed(2))
}

func TestAuditText_NoMessagesWhenTemplateEmpty(t *testing.T) {
	p := DefaultPolicy()
	p.MessageTemplate = ""
	a, err := NewAuditor(p, nil)
	require.NoError(t, err)

	rep, err := a.AuditText(context.Background(), "inline", adjustments)
	require.NoError(t, err)
	assert.Len(t, rep.Result.Claims, 1)
	assert.Nil(t, rep.Result.Messages)
}

func TestNewAuditor_BadTemplate(t *testing.T) {
	p := DefaultPolicy()
	p.MessageTemplate = "{{.SKU"
	_, err := NewAuditor(p, nil)
	require.Error(t, err)
}

func TestAuditText_CustomRules(t *testing.T) {
	r, err := rules.Parse([]byte("keywords: [shrinkage]\n"))
	require.NoError(t, err)
	a, err := NewAuditor(DefaultPolicy(), nil, WithRules(r))
	require.NoError(t, err)

	rep, err := a.AuditText(context.Background(), "inline", "sku,qty,note\nA,2,shrinkage\nB,2,lost\n")
	require.NoError(t, err)
	require.Len(t, rep.Result.Claims, 1)
	assert.Equal(t, "A", rep.Result.Claims[0].SKU)
}

func TestAuditText_ExternalClassifier(t *testing.T) {
	fake := &fakeClassifier{payload: []any{
		map[string]any{"sku": "ABC-1", "claimReason": "Lost", "quantity": json.Number("2"), "estimatedValue": json.Number("17.005")},
		map[string]any{"sku": "", "claimReason": "Lost", "quantity": json.Number("1"), "estimatedValue": json.Number("5")},
		"garbage",
	}}
	a, err := NewAuditor(DefaultPolicy(), nil, WithClassifier(fake))
	require.NoError(t, err)

	rep, err := a.AuditText(context.Background(), "inline.csv", adjustments)
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "8.50", req.UnitValue)
	assert.Equal(t, 50, req.MaxClaims)
	assert.Equal(t, "inline.csv", req.Source)
	require.Len(t, req.Rows, 2)
	assert.Equal(t, "25.5", req.Rows[0]["estimatedValue"])
	assert.NotContains(t, req.Rows[1], "estimatedValue")

	assert.Equal(t, 3, rep.Candidates)
	require.Len(t, rep.Result.Claims, 1)
	assert.Equal(t, "17.01", rep.Result.Claims[0].EstimatedValue.StringFixed(2))
}

func TestAuditText_ExternalClassifierBatches(t *testing.T) {
	fake := &fakeClassifier{}
	p := DefaultPolicy()
	p.ClassifierBatchSize = 2
	a, err := NewAuditor(p, nil, WithClassifier(fake))
	require.NoError(t, err)

	text := "sku,quantity,reason\nA,-1,x\nB,-1,x\nC,-1,x\nD,-1,x\nE,-1,x\n"
	rep, err := a.AuditText(context.Background(), "inline", text)
	require.NoError(t, err)

	require.Len(t, fake.requests, 3)
	assert.Len(t, fake.requests[0].Rows, 2)
	assert.Len(t, fake.requests[2].Rows, 1)
	assert.Equal(t, constants.RunStatusEmpty, rep.Status)
}

func TestAuditText_ExternalSkippedWithoutRows(t *testing.T) {
	fake := &fakeClassifier{}
	a, err := NewAuditor(DefaultPolicy(), nil, WithClassifier(fake))
	require.NoError(t, err)

	rep, err := a.AuditText(context.Background(), "inline", "sku,quantity")
	require.NoError(t, err)
	assert.Empty(t, fake.requests)
	assert.Equal(t, constants.RunStatusEmpty, rep.Status)
}

func TestAuditText_UpstreamFailureIsNotEmpty(t *testing.T) {
	store := newStore(t)
	fake := &fakeClassifier{err: errors.New("status 503")}
	a, err := NewAuditor(DefaultPolicy(), nil, WithClassifier(fake), WithStore(store))
	require.NoError(t, err)

	rep, err := a.AuditText(context.Background(), "inline", adjustments)
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, common.ErrUpstreamClassification)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeUpstreamClassification, appErr.Code)

	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, constants.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Contains(t, *runs[0].ErrorMessage, "status 503")
	assert.True(t, runs[0].UsedClassifier)
}

func TestAuditFile_DedupeByHash(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	a, err := NewAuditor(DefaultPolicy(), nil, WithStore(store))
	require.NoError(t, err)

	dir := t.TempDir()
	first := writeFile(t, dir, "a.csv", adjustments)
	copyPath := writeFile(t, dir, "b.tsv", adjustments)

	r1, err := a.AuditFile(ctx, first, false)
	require.NoError(t, err)
	assert.False(t, r1.Reused)
	assert.Equal(t, constants.CSV, r1.Format)

	r2, err := a.AuditFile(ctx, copyPath, false)
	require.NoError(t, err)
	assert.True(t, r2.Reused)
	assert.Equal(t, r1.RunID, r2.RunID)
	require.Len(t, r2.Result.Claims, 1)
	assert.Equal(t, r1.Result.Claims[0].SKU, r2.Result.Claims[0].SKU)
	assert.Equal(t, "25.50", r2.Result.Claims[0].EstimatedValue.StringFixed(2))
	assert.True(t, r1.Result.TotalEstimatedValue.Equal(r2.Result.TotalEstimatedValue))

	r3, err := a.AuditFile(ctx, first, true)
	require.NoError(t, err)
	assert.False(t, r3.Reused)
	assert.NotEqual(t, r1.RunID, r3.RunID)

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestAuditFile_Unsupported(t *testing.T) {
	a, err := NewAuditor(DefaultPolicy(), nil)
	require.NoError(t, err)

	p := writeFile(t, t.TempDir(), "notes.pdf", "x")
	_, err = a.AuditFile(context.Background(), p, false)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAuditFiles(t *testing.T) {
	a, err := NewAuditor(DefaultPolicy(), nil)
	require.NoError(t, err)

	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.csv", adjustments),
		filepath.Join(dir, "missing.csv"),
		writeFile(t, dir, "c.txt", "sku\tquantity\treason\nQ-1\t-2\tdamaged\n"),
	}
	out, err := a.AuditFiles(context.Background(), paths, 2, false)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.Len(t, out[0].Report.Result.Claims, 1)
	assert.Error(t, out[1].Err)
	assert.Nil(t, out[1].Report)
	require.NoError(t, out[2].Err)
	assert.Equal(t, "Q-1", out[2].Report.Result.Claims[0].SKU)
	assert.Equal(t, paths[1], out[1].Path)
}

func TestValidateCandidates(t *testing.T) {
	a, err := NewAuditor(DefaultPolicy(), nil)
	require.NoError(t, err)

	res := a.ValidateCandidates([]byte(`[
		{"sku":"A","claimReason":"Lost","quantity":2,"estimatedValue":10.005},
		{"sku":"B","reason":"Damaged","quantity":1.5,"estimatedValue":3}
	]`))
	require.Len(t, res.Claims, 1)
	assert.Equal(t, "10.01", res.Claims[0].EstimatedValue.StringFixed(2))
	assert.Equal(t, "10.01", res.TotalEstimatedValue.StringFixed(2))

	assert.Empty(t, a.ValidateCandidates("not a list").Claims)
}

func TestPolicyFromConfig(t *testing.T) {
	p, err := PolicyFromConfig(common.AuditConfig{
		UnitValue:           "10",
		MaxRows:             5,
		MaxClaims:           3,
		AssumeSingleUnit:    true,
		IncludeMessages:     false,
		ClassifierBatchSize: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", p.UnitValue.StringFixed(2))
	assert.Equal(t, 5, p.MaxRows)
	assert.Equal(t, 3, p.MaxClaims)
	assert.True(t, p.AssumeSingleUnit)
	assert.Empty(t, p.MessageTemplate)
	assert.Equal(t, 7, p.ClassifierBatchSize)

	_, err = PolicyFromConfig(common.AuditConfig{UnitValue: "-1"})
	require.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = PolicyFromConfig(common.AuditConfig{UnitValue: "abc"})
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAuditor_MaxClaimsTruncates(t *testing.T) {
	p := DefaultPolicy()
	p.MaxClaims = 1
	a, err := NewAuditor(p, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Policy().MaxClaims)

	rep, err := a.AuditText(context.Background(), "inline", "sku,quantity\nA,-1\nB,-2\n")
	require.NoError(t, err)
	require.Len(t, rep.Result.Claims, 1)
	assert.Equal(t, "A", rep.Result.Claims[0].SKU)
	assert.Equal(t, 2, rep.Candidates)
}
