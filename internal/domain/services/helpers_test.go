package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func parseCatalog(t *testing.T, yaml string) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(yaml))
	require.NoError(t, err)
	return c
}

func prop(name string, raw any) *entities.Property {
	return &entities.Property{Name: name, Raw: raw}
}

func props(ps ...*entities.Property) map[string]*entities.Property {
	m := make(map[string]*entities.Property, len(ps))
	for _, p := range ps {
		m[p.Name] = p
	}
	return m
}

func kinds(flags []entities.Flag) []entities.FlagKind {
	out := make([]entities.FlagKind, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Kind)
	}
	return out
}

func flagsOf(flags []entities.Flag, kind entities.FlagKind) []entities.Flag {
	var out []entities.Flag
	for _, f := range flags {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
