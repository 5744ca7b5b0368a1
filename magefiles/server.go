package main

import (
	"fmt"

	"github.com/pdiddy/fhir-names/internal/container"
)

const localServerPort = 8090

// Server starts a local HAPI FHIR server in docker or podman and prints
// the base URL to pass as --base-url.
func Server() error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	base, err := container.StartHAPI(rt, localServerPort)
	if err != nil {
		return err
	}
	fmt.Printf("HAPI FHIR server (%s) at %s\n", rt.Name(), base)
	fmt.Println("The server takes a minute to accept requests after a fresh start.")
	return nil
}

// ServerStop removes the local HAPI FHIR server container.
func ServerStop() error {
	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	return rt.Stop(container.HAPIContainerName)
}
