package analysis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/compliance-dashboard/internal/audit"
	"github.com/mbd888/compliance-dashboard/internal/risk"
	"github.com/mbd888/compliance-dashboard/internal/validation"
)

type fakeAuditor struct {
	template   string
	assessment risk.Assessment
	err        error
	block      chan struct{}
	started    chan struct{}
}

func (f *fakeAuditor) GenerateTemplate(ctx context.Context, cfg audit.ContractConfig) (string, error) {
	f.wait()
	return f.template, f.err
}

func (f *fakeAuditor) AuditContract(ctx context.Context, code string, cfg audit.ContractConfig) (risk.Assessment, error) {
	f.wait()
	return f.assessment, f.err
}

func (f *fakeAuditor) wait() {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
}

func fixedScore(v float64) ScoreFunc {
	return func(context.Context) (float64, error) { return v, nil }
}

func form() audit.FormFields {
	return audit.FormFields{
		TransactionType: "Securities Settlement",
		AssetType:       "Global Custody Services",
		Value:           "1000",
		SettlementDate:  "2024-09-01",
		CounterpartyID:  "CP-42",
		Jurisdiction:    "USA(SEC/FINRA)",
	}
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestRunner_StartsIdle(t *testing.T) {
	r := NewRunner(&fakeAuditor{})
	st := r.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.Last)
	assert.Nil(t, r.Last())
}

func TestRunner_RunLocal(t *testing.T) {
	r := NewRunner(&fakeAuditor{}, WithScoreSource(fixedScore(82)), WithClock(clock))

	res, err := r.RunLocal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 82.0, res.RiskScore)
	assert.Equal(t, risk.StatusHighRisk, res.Status)
	assert.Equal(t, PathLocal, res.Source)
	assert.Equal(t, fixedNow, res.EvaluatedAt)

	st := r.Status()
	assert.Equal(t, StateSucceeded, st.State)
	assert.Same(t, res, r.Last())
}

func TestRunner_RandomScoresInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		s, err := RandomScores.Score(context.Background())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.Less(t, s, 100.0)
	}
}

func TestRunner_RunAudit(t *testing.T) {
	a, err := risk.Classify(40, risk.DefaultRules())
	require.NoError(t, err)
	a.StatusLabel = "Low"
	r := NewRunner(&fakeAuditor{assessment: a})

	res, err := r.RunAudit(context.Background(), form(), "contract C {}")
	require.NoError(t, err)
	assert.Equal(t, PathAudit, res.Source)
	assert.Equal(t, "Low", res.StatusLabel)
	assert.Equal(t, StateSucceeded, r.Status().State)
}

// A failing audit call must leave the previous assessment in place.
func TestRunner_AuditServerErrorKeepsPriorAssessment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := audit.NewClient(audit.Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
	r := NewRunner(client, WithScoreSource(fixedScore(30)))

	prior, err := r.RunLocal(context.Background())
	require.NoError(t, err)

	_, err = r.RunAudit(context.Background(), form(), "contract C {}")
	require.Error(t, err)
	assert.True(t, audit.IsServiceError(err))

	st := r.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.NotEmpty(t, st.Error)
	assert.Same(t, prior, r.Last())
	assert.Equal(t, 30.0, st.Last.RiskScore)
}

func TestRunner_InvalidFormDoesNotStartCycle(t *testing.T) {
	r := NewRunner(&fakeAuditor{})
	f := form()
	f.Jurisdiction = "Select Jurisdiction"

	_, err := r.RunAudit(context.Background(), f, "")
	require.Error(t, err)
	assert.True(t, validation.IsValidation(err))

	var errs validation.ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 2)
	assert.Equal(t, StateIdle, r.Status().State)
}

func TestRunner_RejectsConcurrentTrigger(t *testing.T) {
	fa := &fakeAuditor{block: make(chan struct{}), started: make(chan struct{})}
	r := NewRunner(fa, WithScoreSource(fixedScore(10)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.RunAudit(context.Background(), form(), "code")
	}()
	<-fa.started

	assert.Equal(t, StateLoading, r.Status().State)
	_, err := r.RunLocal(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(fa.block)
	wg.Wait()
	assert.Equal(t, StateSucceeded, r.Status().State)

	// Next trigger is accepted again.
	_, err = r.RunLocal(context.Background())
	assert.NoError(t, err)
}

func TestRunner_ScoreSourceError(t *testing.T) {
	boom := errors.New("score feed down")
	r := NewRunner(&fakeAuditor{}, WithScoreSource(ScoreFunc(func(context.Context) (float64, error) {
		return 0, boom
	})))

	_, err := r.RunLocal(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, r.Status().State)
	assert.Nil(t, r.Last())
}

func TestRunner_PanicFailsCycleAndRecovers(t *testing.T) {
	var calls int
	r := NewRunner(&fakeAuditor{}, WithClock(clock), WithScoreSource(ScoreFunc(func(context.Context) (float64, error) {
		calls++
		switch calls {
		case 1:
			return 40, nil
		case 2:
			panic("score feed exploded")
		}
		return 10, nil
	})))
	ctx := context.Background()

	first, err := r.RunLocal(ctx)
	require.NoError(t, err)

	_, err = r.RunLocal(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score feed exploded")
	st := r.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Contains(t, st.Error, "panicked")
	assert.Same(t, first, r.Last())

	res, err := r.RunLocal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.RiskScore)
	assert.Equal(t, StateSucceeded, r.Status().State)
}

func TestRunner_OnChangeSeesTransitions(t *testing.T) {
	r := NewRunner(&fakeAuditor{}, WithScoreSource(fixedScore(55)))

	var mu sync.Mutex
	var states []State
	r.OnChange(func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	_, err := r.RunLocal(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateLoading, StateSucceeded}, states)
}

func TestRunner_OnChangeMayReadStatus(t *testing.T) {
	r := NewRunner(&fakeAuditor{}, WithScoreSource(fixedScore(20)))
	var seen []State
	r.OnChange(func(Status) { seen = append(seen, r.Status().State) })

	_, err := r.RunLocal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []State{StateLoading, StateSucceeded}, seen)
}

func TestRunner_GenerateTemplate(t *testing.T) {
	r := NewRunner(&fakeAuditor{template: "contract Custody {}"})

	code, err := r.GenerateTemplate(context.Background(), form())
	require.NoError(t, err)
	assert.Equal(t, "contract Custody {}", code)
	assert.Equal(t, StateIdle, r.Status().State)
}

func TestRunner_GenerateTemplateBusy(t *testing.T) {
	fa := &fakeAuditor{template: "x", block: make(chan struct{}), started: make(chan struct{})}
	r := NewRunner(fa)

	done := make(chan error, 1)
	go func() {
		_, err := r.GenerateTemplate(context.Background(), form())
		done <- err
	}()
	<-fa.started

	_, err := r.GenerateTemplate(context.Background(), form())
	assert.ErrorIs(t, err, ErrBusy)

	close(fa.block)
	assert.NoError(t, <-done)
}

func TestRunner_GenerateTemplateValidation(t *testing.T) {
	r := NewRunner(&fakeAuditor{})
	_, err := r.GenerateTemplate(context.Background(), audit.FormFields{})
	assert.True(t, validation.IsValidation(err))
}
