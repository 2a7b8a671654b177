package classifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/ragebait-block/models"
	"github.com/dtnitsch/ragebait-block/pkg/kv"
	"github.com/dtnitsch/ragebait-block/pkg/metrics"
	"github.com/dtnitsch/ragebait-block/pkg/permission"
)

type fakeEngine struct {
	creates   atomic.Int32
	runs      atomic.Int32
	createErr error
	runErr    error
	labels    []models.LabelScore
	panicOn   string
	delay     time.Duration

	mu      sync.Mutex
	lastCfg EngineConfig
	lastReq RunRequest
}

func (f *fakeEngine) Create(ctx context.Context, cfg EngineConfig) error {
	f.creates.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	f.lastCfg = cfg
	f.mu.Unlock()
	return f.createErr
}

func (f *fakeEngine) Run(ctx context.Context, req RunRequest) ([]models.LabelScore, error) {
	f.runs.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.panicOn != "" && req.Args[0] == f.panicOn {
		panic("boom")
	}
	return f.labels, f.runErr
}

func TestClassifyReturnsLabels(t *testing.T) {
	engine := &fakeEngine{labels: []models.LabelScore{{Label: "NEGATIVE", Score: 0.97}}}
	g := NewGateway(Config{Engine: engine})

	v := g.Classify(context.Background(), "This is outrageous and you should be furious")

	assert.False(t, v.Failed())
	assert.Equal(t, engine.labels, v.Labels)
	assert.True(t, g.Ready())

	assert.Equal(t, DefaultEngineConfig(), engine.lastCfg)
	assert.Equal(t, []string{"This is outrageous and you should be furious"}, engine.lastReq.Args)
	assert.Nil(t, engine.lastReq.Options.TopK)
}

func TestEngineCreatedOnceUnderConcurrency(t *testing.T) {
	engine := &fakeEngine{
		labels: []models.LabelScore{{Label: "POSITIVE", Score: 0.6}},
		delay:  20 * time.Millisecond,
	}
	g := NewGateway(Config{Engine: engine})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := g.Classify(context.Background(), "some headline text")
			assert.False(t, v.Failed())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), engine.creates.Load())
	assert.Equal(t, int32(20), engine.runs.Load())
}

func TestFailedCreateIsRetried(t *testing.T) {
	engine := &fakeEngine{createErr: errors.New("model download failed")}
	g := NewGateway(Config{Engine: engine})

	v := g.Classify(context.Background(), "first")
	require.True(t, v.Failed())
	assert.Contains(t, v.Error, "model download failed")
	assert.False(t, g.Ready())

	engine.createErr = nil
	v = g.Classify(context.Background(), "second")
	assert.False(t, v.Failed())
	assert.True(t, g.Ready())
	assert.Equal(t, int32(2), engine.creates.Load())
}

func TestRunErrorBecomesErrorVerdict(t *testing.T) {
	engine := &fakeEngine{runErr: errors.New("inference failed")}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	g := NewGateway(Config{Engine: engine, Metrics: m})

	v := g.Classify(context.Background(), "text")

	assert.True(t, v.Failed())
	assert.Equal(t, "inference failed", v.Error)
	assert.Nil(t, v.Labels)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues(metrics.OutcomeError)))
}

func TestEnginePanicIsRecovered(t *testing.T) {
	engine := &fakeEngine{panicOn: "explode"}
	g := NewGateway(Config{Engine: engine})

	v := g.Classify(context.Background(), "explode")
	assert.True(t, v.Failed())
	assert.Contains(t, v.Error, "boom")

	// The gateway keeps working afterwards.
	v = g.Classify(context.Background(), "fine")
	assert.False(t, v.Failed())
}

func TestNilLabelsBecomeEmpty(t *testing.T) {
	g := NewGateway(Config{Engine: &fakeEngine{}})

	v := g.Classify(context.Background(), "text")
	assert.False(t, v.Failed())
	assert.NotNil(t, v.Labels)
	assert.Empty(t, v.Labels)
}

func TestPermissionGate(t *testing.T) {
	ctx := context.Background()
	perms := permission.NewManager(kv.NewMemory())
	engine := &fakeEngine{labels: []models.LabelScore{}}
	g := NewGateway(Config{Engine: engine, Permissions: perms})

	v := g.Classify(ctx, "text")
	require.True(t, v.Failed())
	assert.Contains(t, v.Error, permission.TrialML)
	assert.Equal(t, int32(0), engine.creates.Load())

	_, err := perms.Request(ctx, permission.TrialML)
	require.NoError(t, err)

	v = g.Classify(ctx, "text")
	assert.False(t, v.Failed())
	assert.Equal(t, int32(1), engine.creates.Load())
}

func TestCanceledCallerDoesNotAbortSharedInit(t *testing.T) {
	engine := &fakeEngine{labels: []models.LabelScore{}}
	g := NewGateway(Config{Engine: engine})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, g.ensureEngine(ctx))
	assert.True(t, g.Ready())
}
