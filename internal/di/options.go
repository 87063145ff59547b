package di

// Project is the pipeline project name registered in the container.
type Project string

func (p Project) String() string {
	return string(p)
}

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithProject overrides the default project name.
func WithProject(project string) Option {
	return func(opts *options) {
		opts.project = Project(project)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    di.ProvideGlueService,
//	    di.ProvideLambdaService,
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	project   Project
	providers []any
}
