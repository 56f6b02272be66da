package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const hashChunkSize = 1024

// resolveRelative interprets p relative to the directory holding the config
// file.
func (d *Document) resolveRelative(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.Dir(d.Path), p)
}

func (d *Document) originSpan(envName, preset, key string) Span {
	if preset != "" {
		return d.valueSpan("preset", preset, key)
	}
	return d.valueSpan("environment", envName, key)
}

// resolveDockerfile expands and resolves the Dockerfile path and derives the
// image name from its contents.
func (d *Document) resolveDockerfile(envName string, m mergedEnvironment, env Env) (path, image string, err error) {
	path = d.resolveRelative(env.Expand(m.Dockerfile))
	info, statErr := os.Stat(path)
	if statErr != nil || !info.Mode().IsRegular() {
		return "", "", d.newError(KindInvalidDockerfilePath,
			fmt.Sprintf("no Dockerfile at %q", path),
			LabeledSpan{
				Span:  d.originSpan(envName, m.dockerfileFrom, "dockerfile"),
				Label: "Could not find Dockerfile at provided path",
			})
	}

	sum, err := hashFile(path)
	if err != nil {
		cerr := d.newError(KindFailedToInteractWithDockerfile,
			fmt.Sprintf("couldn't read provided dockerfile, %q, for hashing", path),
			LabeledSpan{
				Span:  d.originSpan(envName, m.dockerfileFrom, "dockerfile"),
				Label: "Dockerfile could not be read",
			})
		cerr.Err = err
		return "", "", cerr
	}
	return path, dockerfileImageName(envName, sum), nil
}

func (d *Document) resolveBuildContext(envName string, m mergedEnvironment, env Env) (string, error) {
	if m.BuildContext == "" {
		return "", nil
	}
	path := d.resolveRelative(env.Expand(m.BuildContext))
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", d.newError(KindInvalidBuildContextPath,
			fmt.Sprintf("no directory at %q", path),
			LabeledSpan{
				Span:  d.originSpan(envName, m.buildContextFrom, "build_context"),
				Label: "Could not find build context directory at provided path",
			})
	}
	return path, nil
}

func dockerfileImageName(envName, sum string) string {
	return fmt.Sprintf("%s-%s-%s", namePrefix, strings.ToLower(envName), sum)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
