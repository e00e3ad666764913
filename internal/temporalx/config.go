package temporalx

import (
	"time"

	"github.com/yungbote/maigie-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	DialTimeout           time.Duration
	DialMaxWait           time.Duration

	// ReplayWorkflowID names the singleton outbox replay workflow.
	ReplayWorkflowID string
	ReplayInterval   time.Duration
}

// Enabled reports whether a Temporal address is configured.
func (c Config) Enabled() bool { return c.Address != "" }

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "maigie"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "maigie-engine"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		DialTimeout:           envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second),
		DialMaxWait:           envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", time.Minute),

		ReplayWorkflowID: envutil.String("TEMPORAL_OUTBOX_WORKFLOW_ID", "maigie-outbox-replay"),
		ReplayInterval:   envutil.Duration("OUTBOX_REPLAY_INTERVAL", 5*time.Second),
	}
}
