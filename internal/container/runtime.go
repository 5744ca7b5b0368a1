// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container starts and stops a local FHIR server in Docker or
// Podman, so searches can run against a private server instead of the
// public one.
package container

import (
	"fmt"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"

	// HAPIImage is the reference HAPI FHIR JPA server image.
	HAPIImage = "hapiproject/hapi:latest"

	// HAPIContainerName names the container started by StartHAPI.
	HAPIContainerName = "fhir-names-hapi"

	// hapiPort is the port the server listens on inside the container.
	hapiPort = 8080
)

// Runtime provides the container operations the FHIR server lifecycle needs.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// Start runs image detached as a container called name, publishing
	// containerPort on hostPort. It returns the container id.
	Start(image, name string, hostPort, containerPort int) (string, error)

	// Stop removes the named container.
	Stop(name string) error

	// Running reports whether the named container is running.
	Running(name string) bool
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	Output(name string, args ...string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// runtime implements Runtime for docker or podman. The two share the
// command-line surface used here and differ only in binary name.
type runtime struct {
	bin  string
	exec executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) Start(image, name string, hostPort, containerPort int) (string, error) {
	args := []string{
		"run", "-d", "--rm",
		"--name", name,
		"-p", fmt.Sprintf("%d:%d", hostPort, containerPort),
		image,
	}
	id, err := r.exec.Output(r.bin, args...)
	if err != nil {
		return "", fmt.Errorf("starting %s container %s from %s: %w", r.bin, name, image, err)
	}
	return id, nil
}

func (r *runtime) Stop(name string) error {
	if err := r.exec.RunSilent(r.bin, "rm", "-f", name); err != nil {
		return fmt.Errorf("removing %s container %s: %w", r.bin, name, err)
	}
	return nil
}

func (r *runtime) Running(name string) bool {
	out, err := r.exec.Output(r.bin, "inspect", "-f", "{{.State.Running}}", name)
	return err == nil && out == "true"
}

var defaultExec = &osExecutor{}

// DetectRuntime tries docker first, falls back to podman. Returns an error
// if neither runtime is available.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(defaultExec)
}

func detectRuntime(exec executor) (Runtime, error) {
	for _, bin := range []string{binDocker, binPodman} {
		rt := &runtime{bin: bin, exec: exec}
		if rt.Available() {
			return rt, nil
		}
	}
	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}

// StartHAPI starts the HAPI FHIR server on hostPort unless it is already
// running, and returns the base URL to search against.
func StartHAPI(rt Runtime, hostPort int) (string, error) {
	baseURL := fmt.Sprintf("http://localhost:%d/fhir", hostPort)
	if rt.Running(HAPIContainerName) {
		return baseURL, nil
	}
	if _, err := rt.Start(HAPIImage, HAPIContainerName, hostPort, hapiPort); err != nil {
		return "", err
	}
	return baseURL, nil
}
