package config_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/asrstreamd/internal/config"
	"github.com/MrWong99/asrstreamd/pkg/classifier"
	"github.com/MrWong99/asrstreamd/pkg/classifier/mock"
	"github.com/MrWong99/asrstreamd/pkg/transcriber"
	transcribermock "github.com/MrWong99/asrstreamd/pkg/transcriber/mock"
)

func TestRegistry_CreateClassifier_UnregisteredName(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateClassifier("silero", config.VADConfig{})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Fatalf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_CreateClassifier_UsesRegisteredFactory(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterClassifier("mock", func(cfg config.VADConfig) (classifier.Classifier, error) {
		return mock.New(1000), nil
	})

	c, err := reg.CreateClassifier("mock", config.VADConfig{Mode: 2})
	if err != nil {
		t.Fatalf("CreateClassifier: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil classifier")
	}
}

func TestRegistry_CreateTranscriber_UnregisteredName(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateTranscriber("whisper", config.ModelConfig{})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Fatalf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_CreateTranscriber_UsesRegisteredFactory(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTranscriber("mock", func(cfg config.ModelConfig) (transcriber.Transcriber, error) {
		return transcribermock.New(), nil
	})

	tr, err := reg.CreateTranscriber("mock", config.ModelConfig{Size: "base"})
	if err != nil {
		t.Fatalf("CreateTranscriber: %v", err)
	}
	if tr == nil {
		t.Fatal("expected non-nil transcriber")
	}
}

func TestRegistry_Register_OverwritesPreviousFactory(t *testing.T) {
	reg := config.NewRegistry()
	var calls int
	reg.RegisterClassifier("mock", func(cfg config.VADConfig) (classifier.Classifier, error) {
		calls = 1
		return mock.New(1000), nil
	})
	reg.RegisterClassifier("mock", func(cfg config.VADConfig) (classifier.Classifier, error) {
		calls = 2
		return mock.New(1000), nil
	})

	if _, err := reg.CreateClassifier("mock", config.VADConfig{}); err != nil {
		t.Fatalf("CreateClassifier: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (second registration should win)", calls)
	}
}
