package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/catalystcommunity/enginecore/internal/resource/pack"
	"github.com/catalystcommunity/enginecore/internal/resourceproject"
	"github.com/urfave/cli/v2"
)

// Exit codes for the resource_build CLI surface.
const (
	ExitSuccess     = 0
	ExitInvalidArgs = -1
	ExitSetupFailed = -2
	ExitBuildFailed = -3
)

var validLogLevels = map[string]bool{"debug": true, "regular": true, "quiet": true}
var validPackModes = map[string]bool{"none": true, "regular": true, "interned": true}

var ResourceBuildCommand = &cli.Command{
	Name:  "resource_build",
	Usage: "Scan a resource project's targets and emit read-only resource packs",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "project", Required: true, Usage: "Path to the resource project YAML file"},
		&cli.StringFlag{Name: "log", Value: "regular", Usage: "debug|regular|quiet"},
		&cli.StringFlag{Name: "pack", Value: "regular", Usage: "none|regular|interned"},
		&cli.StringSliceFlag{Name: "targets", Required: true, Usage: "One or more target names to build"},
	},
	Action: func(c *cli.Context) error {
		code := RunResourceBuild(c.String("project"), c.String("log"), c.String("pack"), c.StringSlice("targets"))
		if code != ExitSuccess {
			return cli.Exit("resource_build failed", code)
		}
		return nil
	},
}

// RunResourceBuild implements the resource_build CLI's argument
// validation, project setup, and per-target build, returning one of the
// documented exit codes.
func RunResourceBuild(projectPath, logLevel, packMode string, targets []string) int {
	if projectPath == "" || len(targets) == 0 {
		logging.Log.Error("resource_build: --project and --targets are required")
		return ExitInvalidArgs
	}
	if !validLogLevels[logLevel] {
		logging.Log.WithField("log", logLevel).Error("resource_build: invalid --log value")
		return ExitInvalidArgs
	}
	if !validPackModes[packMode] {
		logging.Log.WithField("pack", packMode).Error("resource_build: invalid --pack value")
		return ExitInvalidArgs
	}

	project, err := resourceproject.Load(projectPath)
	if err != nil {
		logging.Log.WithError(err).Error("resource_build: failed to load project file")
		return ExitSetupFailed
	}

	lock, err := resourceproject.AcquireBuildLock(project.WorkspaceDirectory)
	if err != nil {
		logging.Log.WithError(err).Error("resource_build: failed to acquire build lock")
		return ExitSetupFailed
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.Log.WithError(err).Warn("resource_build: failed to release build lock")
		}
	}()

	encoding := pack.EncodingRegular
	if packMode == "interned" {
		encoding = pack.EncodingInterned
	}

	for _, target := range targets {
		if err := buildTarget(project, target, packMode, encoding); err != nil {
			logging.Log.WithField("target", target).WithError(err).Error("resource_build: build failed")
			return ExitBuildFailed
		}
		logging.Log.WithField("target", target).Info("resource_build: target built")
	}

	return ExitSuccess
}

func buildTarget(project *resourceproject.Project, target, packMode string, encoding pack.Encoding) error {
	targetDir := filepath.Join(project.WorkspaceDirectory, target)
	store := objects.NewFilesystemObjectStore(targetDir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	entries, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list target %q contents: %w", target, err)
	}

	if packMode == "none" {
		return nil
	}

	outPath := filepath.Join(project.WorkspaceDirectory, strings.TrimSuffix(target, "/")+".kanpack")
	builder, err := pack.Create(outPath, encoding)
	if err != nil {
		return err
	}

	for _, e := range entries {
		rc, err := store.Get(ctx, e.Key)
		if err != nil {
			return fmt.Errorf("read %q: %w", e.Key, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read %q: %w", e.Key, err)
		}
		if err := builder.Add(e.Key, data); err != nil {
			return err
		}
	}

	return builder.Finish()
}
