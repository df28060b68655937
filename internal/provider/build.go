package provider

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/kvstore"
	"github.com/rafaeljc/bifrost/internal/store"
)

// Deps carries the already-connected clients a provider may need. Only the
// ones required by the configured kind must be set.
type Deps struct {
	KV       kvstore.Store
	Rules    store.RuleRepository
	S3       S3API
	SSM      SSMAPI
	DynamoDB DynamoDBAPI
	HTTP     *http.Client
	Logger   *slog.Logger
}

// Build constructs the provider selected by cfg.Kind and wraps it, innermost
// first, with the per-call timeout, the circuit breaker and metrics.
func Build(cfg *config.ProviderConfig, deps Deps) (Provider, error) {
	base, err := buildBase(cfg, deps)
	if err != nil {
		return nil, err
	}

	p := WithTimeout(base, cfg.Timeout)
	if cfg.BreakerEnabled && cfg.Kind != config.ProviderStatic {
		p = WithBreaker(p, BreakerSettings{
			Failures:    cfg.BreakerFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
			Logger:      deps.Logger,
		})
	}
	return Instrumented(p), nil
}

func buildBase(cfg *config.ProviderConfig, deps Deps) (Provider, error) {
	switch cfg.Kind {
	case config.ProviderStatic:
		return NewStatic(cfg.StaticThreshold, cfg.StaticVariantA, cfg.StaticVariantB)

	case config.ProviderKV:
		if deps.KV == nil {
			return nil, fmt.Errorf("kv provider requires a kv store")
		}
		return NewKeyValue(deps.KV, cfg.KVKey), nil

	case config.ProviderBlob:
		if deps.S3 == nil {
			return nil, fmt.Errorf("blob provider requires an s3 client")
		}
		var location LocationResolver = StaticLocation(cfg.BlobBucket)
		if cfg.BlobBucket == "" {
			if deps.SSM == nil {
				return nil, fmt.Errorf("blob provider requires an ssm client to resolve %q", cfg.BlobParameter)
			}
			location = NewSSMLocation(deps.SSM, cfg.BlobParameter)
		}
		return NewBlob(location, deps.S3, cfg.BlobKey), nil

	case config.ProviderTable:
		if deps.DynamoDB == nil {
			return nil, fmt.Errorf("table provider requires a dynamodb client")
		}
		return NewTable(deps.DynamoDB, cfg.TableName), nil

	case config.ProviderPostgres:
		if deps.Rules == nil {
			return nil, fmt.Errorf("postgres provider requires a rule repository")
		}
		return NewPostgres(deps.Rules), nil

	case config.ProviderOrigin:
		return NewOrigin(deps.HTTP, cfg.OriginURL), nil

	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
