package featureflags

import (
	"context"

	"jornada/pkg/config"

	flagsmith "github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const ParticipantAutoProvision = "participant_auto_provision"

type FeatureFlag interface {
	// Enabled reports the state of name for identifier, or def when the flag
	// service is not configured or unreachable.
	Enabled(ctx context.Context, name, identifier string, def bool) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return Static(nil)
	}

	opts := []flagsmith.Option{flagsmith.WithAnalytics()}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Enabled(ctx context.Context, name, identifier string, def bool) bool {
	var (
		flags flagsmith.Flags
		err   error
	)
	if identifier == "" {
		flags, err = s.client.GetEnvironmentFlags()
	} else {
		flags, err = s.client.GetIdentityFlags(identifier, nil)
	}
	if err != nil {
		zap.L().Warn("feature flag lookup failed", zap.String("flag", name), zap.Error(err))
		return def
	}

	enabled, err := flags.IsFeatureEnabled(name)
	if err != nil {
		return def
	}
	return enabled
}

// Static is a fixed flag set; names missing from it resolve to the default.
type Static map[string]bool

func (s Static) Enabled(_ context.Context, name, _ string, def bool) bool {
	if v, ok := s[name]; ok {
		return v
	}
	return def
}
