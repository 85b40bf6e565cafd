package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lma-docpulse/internal/data/memory"
	"github.com/lma-docpulse/internal/domain/currency"
	"github.com/lma-docpulse/internal/domain/document"
	"github.com/lma-docpulse/internal/extraction"
	"github.com/lma-docpulse/internal/platform/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockExtractor mocks the extraction.Extractor interface
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, ref extraction.Reference) (*extraction.Result, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extraction.Result), args.Error(1)
}

// failingStore rejects every write
type failingStore struct {
	storage.ObjectStore
}

func (failingStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return errors.New("bucket unavailable")
}

// cancellingStore stores the bytes and then cancels the caller's context, the way a client
// dropping the connection right after the transfer would
type cancellingStore struct {
	*storage.MemoryStore
	cancel context.CancelFunc
}

func (s cancellingStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	err := s.MemoryStore.Put(ctx, key, body, size, contentType)
	s.cancel()
	return err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	docs      *memory.DocumentStore
	store     *storage.MemoryStore
	extractor *MockExtractor
	pipeline  *Pipeline
}

func newFixture(t *testing.T, cfg Config, pool *WorkerPool) *fixture {
	t.Helper()
	f := &fixture{
		docs:      memory.NewDocumentStore(discardLogger(), document.TransitionPolicy{AllowErrorRetry: cfg.AllowErrorRetry}),
		store:     storage.NewMemoryStore(),
		extractor: new(MockExtractor),
	}
	f.pipeline = NewPipeline(discardLogger(), f.docs, f.store, f.extractor, pool, cfg)
	return f
}

func (f *fixture) upload(t *testing.T, name, body string) *document.Record {
	t.Helper()
	rec, err := f.pipeline.Upload(context.Background(), UploadRequest{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	})
	require.NoError(t, err)
	return rec
}

var defaultConfig = Config{DraftMarkers: []string{"draft"}, AllowErrorRetry: true}

func TestPipeline_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores bytes and marks ready", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "agreement text")

		assert.Equal(t, document.StatusReady, rec.Status)
		rc, err := f.store.Get(ctx, rec.ObjectKey)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "agreement text", string(data))
	})

	t.Run("transfer failure moves record to error", func(t *testing.T) {
		docs := memory.NewDocumentStore(discardLogger(), document.TransitionPolicy{})
		p := NewPipeline(discardLogger(), docs, failingStore{}, new(MockExtractor), nil, defaultConfig)

		rec, err := p.Upload(ctx, UploadRequest{Filename: "omega.pdf", Size: 1, Body: strings.NewReader("x")})
		require.Error(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, document.StatusError, rec.Status)
		assert.Contains(t, rec.FailureReason, "bucket unavailable")
	})

	t.Run("cancelled after transfer still marks ready", func(t *testing.T) {
		docs := memory.NewDocumentStore(discardLogger(), document.TransitionPolicy{})
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		p := NewPipeline(discardLogger(), docs, cancellingStore{MemoryStore: storage.NewMemoryStore(), cancel: cancel}, new(MockExtractor), nil, defaultConfig)

		rec, err := p.Upload(cctx, UploadRequest{Filename: "omega.pdf", Size: 4, Body: strings.NewReader("body")})
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, document.StatusReady, rec.Status)

		stored, err := docs.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusReady, stored.Status)
	})

	t.Run("empty filename", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		_, err := f.pipeline.Upload(ctx, UploadRequest{Filename: " ", Body: strings.NewReader("")})
		assert.ErrorIs(t, err, document.ErrEmptyFilename)
		assert.Equal(t, 0, f.docs.Len())
	})
}

func TestPipeline_Analyze(t *testing.T) {
	ctx := context.Background()

	t.Run("clean document is analyzed", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.MatchedBy(func(ref extraction.Reference) bool {
			return ref.DocumentID == rec.ID && ref.ObjectKey == rec.ObjectKey
		})).Return(&extraction.Result{
			Entities:       map[string]string{"borrower": "Omega Holdings"},
			FacilityAmount: "$12.5M",
			RiskFlag:       "High",
			Content:        "final executed agreement",
			Findings:       []string{"LIBOR reference without SOFR fallback"},
		}, nil).Once()

		analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)

		assert.Equal(t, document.StatusAnalyzed, analyzed.Status)
		assert.Equal(t, document.RiskCritical, analyzed.RiskFlag)
		require.NotNil(t, analyzed.FacilityAmount)
		assert.Equal(t, currency.MustParse("$12.5M"), *analyzed.FacilityAmount)
		assert.NotNil(t, analyzed.AnalyzedAt)
		assert.Equal(t, "Omega Holdings", analyzed.ExtractedEntities["borrower"])
		assert.Equal(t, "LIBOR reference without SOFR fallback", analyzed.ExtractedEntities[FindingsEntity])
		f.extractor.AssertExpectations(t)
	})

	t.Run("draft filename goes to review", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "Omega_DRAFT_v2.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{}, nil).Once()

		analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusReview, analyzed.Status)
		assert.Nil(t, analyzed.AnalyzedAt)
	})

	t.Run("draft content goes to review", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{Content: "Draft for discussion"}, nil).Once()

		analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusReview, analyzed.Status)
	})

	t.Run("marker inside another word is not a draft", func(t *testing.T) {
		for _, content := range []string{
			"The lender makes available an overdraft facility of $2M.",
			"Drafting conventions follow the LMA recommended form.",
			"Signed by the draftsman on behalf of the agent.",
		} {
			f := newFixture(t, defaultConfig, nil)
			rec := f.upload(t, "omega_facility.pdf", "body")
			f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{Content: content}, nil).Once()

			analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, document.StatusAnalyzed, analyzed.Status, content)
		}
	})

	t.Run("multi-word marker", func(t *testing.T) {
		f := newFixture(t, Config{DraftMarkers: []string{"for discussion", "preliminary"}}, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{Content: "Terms FOR DISCUSSION only."}, nil).Once()

		analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusReview, analyzed.Status)
	})

	t.Run("unparsable amount is left absent", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{FacilityAmount: "TBD", RiskFlag: "unheard-of"}, nil).Once()

		analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)
		assert.Nil(t, analyzed.FacilityAmount)
		assert.Equal(t, document.RiskNone, analyzed.RiskFlag)
	})

	t.Run("extraction failure records error", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).
			Return(nil, &extraction.Error{DocumentID: rec.ID, Cause: extraction.ErrMissingCredential}).Once()

		failed, err := f.pipeline.Analyze(ctx, rec.ID)
		var extErr *extraction.Error
		require.ErrorAs(t, err, &extErr)
		assert.ErrorIs(t, err, extraction.ErrMissingCredential)
		require.NotNil(t, failed)
		assert.Equal(t, document.StatusError, failed.Status)
		assert.Equal(t, extraction.ErrMissingCredential.Error(), failed.FailureReason)
	})

	t.Run("plain errors are wrapped as extraction errors", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := f.pipeline.Analyze(ctx, rec.ID)
		var extErr *extraction.Error
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, rec.ID, extErr.DocumentID)
	})

	t.Run("cancelled context still records the failure", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")

		cctx, cancel := context.WithCancel(ctx)
		f.extractor.On("Extract", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).
			Return(nil, context.Canceled).Once()

		_, err := f.pipeline.Analyze(cctx, rec.ID)
		require.Error(t, err)

		stored, err := f.docs.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusError, stored.Status)
	})

	t.Run("retry from error when enabled", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{}, nil).Once()

		_, err := f.pipeline.Analyze(ctx, rec.ID)
		require.Error(t, err)

		analyzed, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusAnalyzed, analyzed.Status)
		assert.Empty(t, analyzed.FailureReason)
	})

	t.Run("error is terminal when retry is disabled", func(t *testing.T) {
		f := newFixture(t, Config{DraftMarkers: []string{"draft"}}, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := f.pipeline.Analyze(ctx, rec.ID)
		require.Error(t, err)

		_, err = f.pipeline.Analyze(ctx, rec.ID)
		assert.ErrorIs(t, err, document.ErrInvalidTransition{})
		f.extractor.AssertNumberOfCalls(t, "Extract", 1)
	})

	t.Run("analyzed documents cannot be analyzed again", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		rec := f.upload(t, "omega.pdf", "body")
		f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{}, nil).Once()

		_, err := f.pipeline.Analyze(ctx, rec.ID)
		require.NoError(t, err)

		_, err = f.pipeline.Analyze(ctx, rec.ID)
		var transitionErr document.ErrInvalidTransition
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, document.StatusAnalyzed, transitionErr.From)
		assert.Equal(t, document.StatusAnalyzing, transitionErr.To)
	})

	t.Run("unknown document", func(t *testing.T) {
		f := newFixture(t, defaultConfig, nil)
		_, err := f.pipeline.Analyze(ctx, uuid.New())
		assert.ErrorIs(t, err, document.ErrDocumentNotFound{})
	})
}

func TestPipeline_ConfirmAnalyzed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig, nil)
	rec := f.upload(t, "draft_omega.pdf", "body")
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{}, nil).Once()

	t.Run("requires review", func(t *testing.T) {
		_, err := f.pipeline.ConfirmAnalyzed(ctx, rec.ID)
		assert.ErrorIs(t, err, document.ErrInvalidTransition{})
	})

	review, err := f.pipeline.Analyze(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, document.StatusReview, review.Status)

	confirmed, err := f.pipeline.ConfirmAnalyzed(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusAnalyzed, confirmed.Status)
	assert.NotNil(t, confirmed.AnalyzedAt)

	_, err = f.pipeline.ConfirmAnalyzed(ctx, rec.ID)
	assert.ErrorIs(t, err, document.ErrInvalidTransition{})
}

func TestPipeline_AnalyzingBlocksOtherTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig, nil)
	rec := f.upload(t, "omega.pdf", "body")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.extractor.On("Extract", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(&extraction.Result{}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Analyze(ctx, rec.ID)
		done <- err
	}()
	<-entered

	stored, err := f.docs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusAnalyzing, stored.Status)

	_, err = f.pipeline.Analyze(ctx, rec.ID)
	assert.ErrorIs(t, err, document.ErrInvalidTransition{})
	_, err = f.pipeline.ConfirmAnalyzed(ctx, rec.ID)
	assert.ErrorIs(t, err, document.ErrInvalidTransition{})

	close(release)
	require.NoError(t, <-done)
}

func TestPipeline_Abandon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultConfig, nil)
	rec := f.upload(t, "omega.pdf", "body")

	_, err := f.pipeline.Abandon(ctx, rec.ID, "operator gave up")
	assert.ErrorIs(t, err, document.ErrInvalidTransition{})

	_, err = f.docs.UpdateStatus(ctx, rec.ID, document.StatusAnalyzing)
	require.NoError(t, err)

	abandoned, err := f.pipeline.Abandon(ctx, rec.ID, "operator gave up")
	require.NoError(t, err)
	assert.Equal(t, document.StatusError, abandoned.Status)
	assert.Equal(t, "operator gave up", abandoned.FailureReason)
}

func TestPipeline_AnalyzeReady(t *testing.T) {
	ctx := context.Background()

	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 2}, discardLogger())
	require.NoError(t, err)
	defer pool.Shutdown(time.Second)

	f := newFixture(t, defaultConfig, pool)

	var ids []uuid.UUID
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "bad.pdf"} {
		ids = append(ids, f.upload(t, name, "body").ID)
	}
	// not ready yet, must be skipped
	_, err = f.docs.Create(ctx, "in_flight.pdf", document.Metadata{})
	require.NoError(t, err)

	var concurrent, peak int32
	var mu sync.Mutex
	track := func(mock.Arguments) {
		n := atomic.AddInt32(&concurrent, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
	}
	f.extractor.On("Extract", mock.Anything, mock.MatchedBy(func(ref extraction.Reference) bool {
		return ref.Filename == "bad.pdf"
	})).Run(track).Return(nil, errors.New("unreadable")).Once()
	f.extractor.On("Extract", mock.Anything, mock.Anything).Run(track).Return(&extraction.Result{}, nil).Times(4)

	results, err := f.pipeline.AnalyzeReady(ctx)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, res := range results {
		assert.Equal(t, ids[i], res.DocumentID)
		require.NotNil(t, res.Record)
		if i == 4 {
			assert.Error(t, res.Err)
			assert.Equal(t, document.StatusError, res.Record.Status)
			continue
		}
		assert.NoError(t, res.Err)
		assert.Equal(t, document.StatusAnalyzed, res.Record.Status)
	}
	assert.LessOrEqual(t, peak, int32(2))
	assert.Equal(t, 0, pool.InFlight())

	again, err := f.pipeline.AnalyzeReady(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPipeline_ProcessAnalysisRequest(t *testing.T) {
	ctx := context.Background()

	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 1}, discardLogger())
	require.NoError(t, err)
	defer pool.Shutdown(time.Second)

	f := newFixture(t, defaultConfig, pool)
	rec := f.upload(t, "omega.pdf", "body")
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&extraction.Result{}, nil).Once()

	require.NoError(t, f.pipeline.ProcessAnalysisRequest(ctx, NewAnalysisRequest(rec.ID, "corr-1")))

	stored, err := f.docs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, document.StatusAnalyzed, stored.Status)

	err = f.pipeline.ProcessAnalysisRequest(ctx, &AnalysisRequest{})
	assert.ErrorIs(t, err, ErrEmptyDocumentID)
}
