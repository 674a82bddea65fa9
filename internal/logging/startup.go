package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource kinds reported under "resources" in the cold-start event.
const (
	resourceModels        = "models"
	resourceSSMParams     = "ssmParams"
	resourceStateMachines = "stateMachines"
)

// StartupLogger builds the single cold-start event a Lambda emits after
// init: runtime identity, the AWS resources it was wired to, feature flags
// and plain configuration. Values are never secrets; SSM parameters are
// logged by path only.
type StartupLogger struct {
	name         string
	commit       string
	built        string
	initDuration time.Duration

	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the named Lambda
// (e.g. "stage-lambda", "track-lambda").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		resources: map[string]map[string]string{},
		features:  map[string]bool{},
		config:    map[string]string{},
	}
}

// Build records the commit and build time injected with -ldflags. Empty
// values are omitted.
func (s *StartupLogger) Build(commit, builtAt string) *StartupLogger {
	s.commit, s.built = commit, builtAt
	return s
}

func (s *StartupLogger) resource(kind, label, value string) *StartupLogger {
	m, ok := s.resources[kind]
	if !ok {
		m = map[string]string{}
		s.resources[kind] = m
	}
	m[label] = value
	return s
}

// Model records the inference model serving label.
func (s *StartupLogger) Model(label, id string) *StartupLogger {
	return s.resource(resourceModels, label, id)
}

// SSMParam records the path of a parameter read at init.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.resource(resourceSSMParams, label, path)
}

// StateMachine records a Step Functions state machine ARN.
func (s *StartupLogger) StateMachine(label, arn string) *StartupLogger {
	return s.resource(resourceStateMachines, label, arn)
}

// Feature records a boolean feature flag.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config records a non-sensitive setting.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long init took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the named environment variable, or defaultVal when it
// is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// identity describes the running function from the Lambda environment.
func (s *StartupLogger) identity() *zerolog.Event {
	d := zerolog.Dict().Str("name", s.name)
	for _, kv := range [][2]string{
		{"functionName", "AWS_LAMBDA_FUNCTION_NAME"},
		{"version", "AWS_LAMBDA_FUNCTION_VERSION"},
		{"region", "AWS_REGION"},
		{"memoryMB", "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"},
		{"runtime", "AWS_EXECUTION_ENV"},
		{"logLevel", LevelEnvVar},
	} {
		if v := os.Getenv(kv[1]); v != "" {
			d = d.Str(kv[0], v)
		}
	}
	d = d.Str("goVersion", runtime.Version()).Str("arch", runtime.GOARCH)
	if s.commit != "" {
		d = d.Str("commit", s.commit)
	}
	if s.built != "" {
		d = d.Str("buildTime", s.built)
	}
	return d
}

// Log emits the cold-start event at info level.
func (s *StartupLogger) Log() {
	evt := log.Info().Dict("lambda", s.identity())

	if len(s.resources) > 0 {
		res := zerolog.Dict()
		for kind, m := range s.resources {
			res = res.Dict(kind, strDict(m))
		}
		evt = evt.Dict("resources", res)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", strDict(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Lambda cold start complete")
}

func strDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
