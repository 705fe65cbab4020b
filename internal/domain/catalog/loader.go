package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// rulePattern selects rule files inside a catalog directory.
const rulePattern = "**/*.{yaml,yml}"

// ErrNoRuleFiles is returned when a catalog directory holds no rule files.
var ErrNoRuleFiles = errors.New("no rule files found")

// Load reads a catalog from a YAML file or from every *.yaml/*.yml file under
// a directory, merged in lexical path order.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule catalog: %w", err)
	}

	var files []string
	if info.IsDir() {
		matches, err := doublestar.Glob(os.DirFS(path), rulePattern)
		if err != nil {
			return nil, fmt.Errorf("listing rule files: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrNoRuleFiles)
		}
		slices.Sort(matches)
		for _, m := range matches {
			files = append(files, filepath.Join(path, filepath.FromSlash(m)))
		}
	} else {
		files = []string{path}
	}

	sources := make([]source, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading rule file: %w", err)
		}
		sources = append(sources, source{name: f, data: data})
	}

	return build(sources)
}

// Parse builds a catalog from a single YAML document.
func Parse(data []byte) (*Catalog, error) {
	return build([]source{{name: "<inline>", data: data}})
}

type source struct {
	name string
	data []byte
}

func build(sources []source) (*Catalog, error) {
	var (
		doc  document
		errs []error
	)

	h := sha256.New()
	names := make([]string, 0, len(sources))

	for _, src := range sources {
		d, err := decode(src)
		if err != nil {
			return nil, err
		}
		errs = append(errs, doc.merge(d, src.name)...)

		h.Write(src.data)
		names = append(names, src.name)
	}

	c, buildErrs := compile(doc)
	errs = append(errs, buildErrs...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid rule catalog: %w", errors.Join(errs...))
	}

	c.sources = names
	c.digest = hex.EncodeToString(h.Sum(nil))[:16]
	return c, nil
}

func decode(src source) (document, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(src.data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return document{}, fmt.Errorf("parsing rule file %s: %w", src.name, err)
	}
	return doc, nil
}
