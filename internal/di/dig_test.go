package di

import (
	"errors"
	"testing"

	"go.uber.org/dig"
)

// Test types for dependency injection
type fakeStateStore struct {
	Table string
}

type fakeUploader struct {
	Bucket string
}

type fakeDeployer struct {
	Store    *fakeStateStore
	Uploader *fakeUploader
	Env      string
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "creates container with no providers",
			env:     "dev",
			opts:    nil,
			wantErr: false,
		},
		{
			name: "creates container with single provider",
			env:  "staging",
			opts: []Option{
				WithProviders(func() *fakeStateStore {
					return &fakeStateStore{Table: "resources"}
				}),
			},
			wantErr: false,
		},
		{
			name: "creates container with multiple providers",
			env:  "prod",
			opts: []Option{
				WithProviders(
					func() *fakeStateStore {
						return &fakeStateStore{Table: "resources"}
					},
					func() *fakeUploader {
						return &fakeUploader{Bucket: "artifacts"}
					},
				),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container, err := New(tt.env, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if container == nil && !tt.wantErr {
				t.Error("New() returned nil container without error")
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	// Attempting to provide the same type twice should fail
	_, err := New("dev",
		WithProviders(
			func() *fakeStateStore {
				return &fakeStateStore{Table: "a"}
			},
			func() *fakeStateStore {
				return &fakeStateStore{Table: "b"}
			},
		),
	)

	if err == nil {
		t.Error("New() should return error when providing duplicate types")
	}
}

func TestNew_ProvidesEnvironment(t *testing.T) {
	expectedEnv := "test-env"
	container, err := New(expectedEnv)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var actualEnv string
	err = container.Invoke(func(env string) {
		actualEnv = env
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}

	if actualEnv != expectedEnv {
		t.Errorf("Environment = %v, want %v", actualEnv, expectedEnv)
	}
}

func TestNew_ProvidesProject(t *testing.T) {
	container, err := New("dev", WithProject("sales-pipeline"))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var project Project
	err = container.Invoke(func(p Project) {
		project = p
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}

	if project.String() != "sales-pipeline" {
		t.Errorf("Project = %v, want sales-pipeline", project)
	}
}

func TestNew_ResolvesDependencyGraph(t *testing.T) {
	container, err := New("dev",
		WithProviders(
			func() *fakeStateStore {
				return &fakeStateStore{Table: "resources"}
			},
			func() *fakeUploader {
				return &fakeUploader{Bucket: "artifacts"}
			},
			func(store *fakeStateStore, uploader *fakeUploader, env string) *fakeDeployer {
				return &fakeDeployer{Store: store, Uploader: uploader, Env: env}
			},
		),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	deployer := MustGet[*fakeDeployer](container)
	if deployer.Store == nil || deployer.Uploader == nil {
		t.Fatal("MustGet() returned deployer with unresolved dependencies")
	}
	if deployer.Env != "dev" {
		t.Errorf("Env = %v, want dev", deployer.Env)
	}
}

func TestMustGet_PanicsOnMissingDependency(t *testing.T) {
	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGet() should panic for an unregistered type")
		}
	}()
	MustGet[*fakeDeployer](container)
}

func TestContainerInterface(t *testing.T) {
	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	// Provide after construction, then resolve through Invoke
	if err := container.Provide(func() *fakeUploader {
		return &fakeUploader{Bucket: "late"}
	}); err != nil {
		t.Fatalf("Provide() unexpected error: %v", err)
	}

	var uploader *fakeUploader
	if err := container.Invoke(func(u *fakeUploader) {
		uploader = u
	}); err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
	if uploader.Bucket != "late" {
		t.Errorf("Bucket = %v, want late", uploader.Bucket)
	}

	if scope := container.Scope("sub"); scope == nil {
		t.Error("Scope() returned nil")
	}
}

func TestMustGet_PropagatesDigError(t *testing.T) {
	container, err := New("dev",
		WithProviders(func() (*fakeStateStore, error) {
			return nil, errors.New("table unavailable")
		}),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var digErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if e, ok := r.(error); ok {
					digErr = e
				}
			}
		}()
		MustGet[*fakeStateStore](container)
	}()

	if digErr == nil {
		t.Fatal("MustGet() should panic with the constructor error")
	}
	if dig.RootCause(digErr) == nil {
		t.Error("expected a dig error with a root cause")
	}
}
