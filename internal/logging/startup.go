package logging

import (
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource kinds, in the order they appear under "resources".
const (
	resourceS3Buckets    = "s3Buckets"
	resourceDynamoTables = "dynamoTables"
	resourceSSMParams    = "ssmParams"
	resourceModels       = "bedrockModels"
	resourceEventBuses   = "eventBuses"
)

var resourceKinds = []string{
	resourceS3Buckets,
	resourceDynamoTables,
	resourceSSMParams,
	resourceModels,
	resourceEventBuses,
}

// StartupLogger collects process identity, resources, feature flags, and
// configuration, then emits them as one structured event. Every entrypoint
// logs it once after init so a deployment can be checked from its logs.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the named entrypoint
// (e.g. "api-lambda", "mcp-server").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		resources: make(map[string]map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

func (s *StartupLogger) resource(kind, label, value string) *StartupLogger {
	if s.resources[kind] == nil {
		s.resources[kind] = make(map[string]string)
	}
	s.resources[kind][label] = value
	return s
}

// CommitHash sets the git commit baked in with -ldflags.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked in with -ldflags.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	return s.resource(resourceS3Buckets, label, name)
}

func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	return s.resource(resourceDynamoTables, label, name)
}

// SSMParam registers a parameter path. The value is never logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.resource(resourceSSMParams, label, path)
}

func (s *StartupLogger) Model(label, modelID string) *StartupLogger {
	return s.resource(resourceModels, label, modelID)
}

func (s *StartupLogger) EventBus(label, name string) *StartupLogger {
	return s.resource(resourceEventBuses, label, name)
}

// Feature records whether an optional integration is enabled.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config records a non-sensitive setting.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits the collected state as a single INFO event.
func (s *StartupLogger) Log() {
	evt := log.Info().Dict("process", s.identity())

	if res, ok := s.resourceDict(); ok {
		evt = evt.Dict("resources", res)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", stringDict(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

// identity describes the binary and, inside Lambda, the function running it.
func (s *StartupLogger) identity() *zerolog.Event {
	d := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", ParseLevel(os.Getenv(LevelEnvVar)).String())
	if s.commitHash != "" {
		d = d.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		d = d.Str("buildTime", s.buildTime)
	}

	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		d = d.Str("functionName", fn).
			Str("functionVersion", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")).
			Str("logGroup", os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME")).
			Str("runtime", os.Getenv("AWS_EXECUTION_ENV"))
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		d = d.Str("region", region)
	}
	return d
}

// resourceDict nests each non-empty resource kind. ok is false when no
// resource was registered.
func (s *StartupLogger) resourceDict() (*zerolog.Event, bool) {
	d := zerolog.Dict()
	ok := false
	for _, kind := range resourceKinds {
		if m := s.resources[kind]; len(m) > 0 {
			d = d.Dict(kind, stringDict(m))
			ok = true
		}
	}
	return d, ok
}

func stringDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d = d.Str(k, m[k])
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
