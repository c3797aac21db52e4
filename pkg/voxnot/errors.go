package voxnot

import (
	"errors"
	"fmt"
)

var (
	// ErrTraining is matched by every *TrainingError.
	ErrTraining = errors.New("voxnot: training failed")

	// ErrConversion is matched by every *ConversionError.
	ErrConversion = errors.New("voxnot: conversion failed")
)

// FSError is a filesystem or storage failure of the toolkit itself.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("voxnot: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

// TrainingError wraps a failure reported by the model during a run.
type TrainingError struct {
	Run   string
	Stage string // configure, train or checkpoint
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("voxnot: training %q failed at %s: %v", e.Run, e.Stage, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

func (e *TrainingError) Is(target error) bool { return target == ErrTraining }

// ConversionError wraps the failure of one (model, query) pair. Query is
// empty when loading the model failed.
type ConversionError struct {
	Query string
	Model string
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("voxnot: load model %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("voxnot: convert %s with %s: %v", e.Query, e.Model, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }
