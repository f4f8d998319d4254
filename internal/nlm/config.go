package nlm

import (
	"time"

	"golang.org/x/time/rate"
)

// RPC procedure ids observed via network inspection of the NotebookLM web app
// (batchexecute routing ids). These belong to an uncontrolled backend and can
// change without notice — treat as configuration, not contract.
const (
	RPCCreateNotebook      = "CCqFvf"
	RPCAddSource           = "izAoDd"
	RPCGenerateInfographic = "R7cb6c"
	RPCListArtifacts       = "gArtLc"
	RPCDeleteNotebook      = "f61S6e"
	RPCGetProject          = "rLM1Ne"
)

// Config holds all core configuration, injected from main.
type Config struct {
	// BaseURL is the NotebookLM origin.
	BaseURL string
	// RPCPath is the batchexecute endpoint path under BaseURL.
	RPCPath string
	// StreamRPCPath is the streamed free-form generation endpoint path.
	StreamRPCPath string
	// Language passed as the hl routing parameter.
	Language string

	// PostMutationSettleDelay is the wait after mutating RPCs (add-source)
	// before relying on their effects. Empirical workaround for unknown
	// backend propagation latency, not a documented guarantee.
	PostMutationSettleDelay time.Duration
	// SummaryIndexDelay is the wait before the first streamed query against a
	// freshly added source, giving the backend time to index the transcript.
	SummaryIndexDelay time.Duration

	ArtifactPollInterval time.Duration
	ArtifactPollAttempts int

	// StreamTimeout bounds one streamed generation request.
	StreamTimeout time.Duration
	// RPCTimeout bounds one plain batchexecute request.
	RPCTimeout time.Duration

	// RPCRateLimit caps outgoing RPCs per second. The backend's throttling
	// thresholds are unknown, so stay conservative.
	RPCRateLimit float64

	// CookieFile is a JSON cookie export for the HTTP transport.
	CookieFile string
	// CachePath is the SQLite database for the notebook cache. Empty disables
	// durable caching.
	CachePath string

	// ChromeUserDataDir is the persistent profile for the chromedp transport.
	ChromeUserDataDir string
	Headless          bool
}

var cfg Config

// Cfg exposes the core configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// rpcLimiter is shared by all RPC executions for one process.
var rpcLimiter *rate.Limiter

// Init initializes the core with the given configuration.
func Init(c Config) {
	if c.BaseURL == "" {
		c.BaseURL = "https://notebooklm.google.com"
	}
	if c.RPCPath == "" {
		c.RPCPath = "/_/LabsTailwindUi/data/batchexecute"
	}
	if c.StreamRPCPath == "" {
		c.StreamRPCPath = "/_/LabsTailwindUi/data/google.internal.labs.tailwind.orchestration.v1.LabsTailwindOrchestrationService/GenerateFreeFormStreamed"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.PostMutationSettleDelay == 0 {
		c.PostMutationSettleDelay = 10 * time.Second
	}
	if c.SummaryIndexDelay == 0 {
		c.SummaryIndexDelay = 30 * time.Second
	}
	if c.ArtifactPollInterval == 0 {
		c.ArtifactPollInterval = 10 * time.Second
	}
	if c.ArtifactPollAttempts == 0 {
		c.ArtifactPollAttempts = 30
	}
	if c.StreamTimeout == 0 {
		c.StreamTimeout = 2 * time.Minute
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = 30 * time.Second
	}
	if c.RPCRateLimit == 0 {
		c.RPCRateLimit = 1
	}
	cfg = c
	Cfg = &cfg
	rpcLimiter = rate.NewLimiter(rate.Limit(c.RPCRateLimit), 3)
}
