// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It simplifies container setup and provides type-safe dependency retrieval with generics.
package di

import (
	"go.uber.org/dig"

	"github.com/meridian-data/etl-deployer/internal/config"
	"github.com/meridian-data/etl-deployer/internal/monitor"
	"github.com/meridian-data/etl-deployer/internal/policy"
	"github.com/meridian-data/etl-deployer/internal/provision"
	"github.com/meridian-data/etl-deployer/internal/services"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// MustGet returns an instance constructed via dependency injection or panics.
// This is a convenience function for retrieving a dependency from the container
// when you're certain it exists. If the dependency cannot be resolved, it will panic.
//
// Example:
//
//	dao := MustGet[*resourcedao.DAO](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// New creates a new dependency injection container for the given environment.
// The environment string is automatically registered as a string dependency
// that can be injected as a regular string parameter.
//
// Example:
//
//	container, err := New("dev",
//	    WithProviders(
//	        di.ProvideGlueService,
//	    ),
//	)
func New(env string, opts ...Option) (Container, error) {
	o := options{
		project: Project(config.DefaultProjectName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() string { return env }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() Project { return o.project }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideContext,
	ProvideAWSConfig,
	ProvideSSMClient,
	ProvideParameterStore,
	ProvideAppConfig,
	ProvideDynamoDB,
	ProvideS3Client,
	ProvideIAMClient,
	ProvideSTSClient,
	ProvideGlueClient,
	ProvideLambdaClient,
	ProvideCloudWatchClient,
	ProvideCloudWatchLogsClient,
	ProvideSecretsManagerClient,
	ProvideResourceDAO,
	services.NewIAMService,
	services.NewSecretsManagerService,
	ProvideS3Service,
	policy.NewValidator,
	provision.NewApplier,
	monitor.New,
}
