package vocab

import (
	"fmt"
	"io"
	"strings"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	yaml "gopkg.in/yaml.v2"
)

type TypeDefinition struct {
	ID      string   `yaml:"id"`
	Short   string   `yaml:"short"`
	Parents []string `yaml:"parents"`
	Notes   string   `yaml:"notes"`
}

type Definition struct {
	Name  string           `yaml:"name"`
	Core  bool             `yaml:"core"`
	Types []TypeDefinition `yaml:"types"`
}

// LoadDefinition reads a yaml vocabulary definition and builds a Vocabulary
// from it. Parents are resolved among the types of the definition first and
// then in the base vocabularies, by URI or by short id.
func LoadDefinition(data io.Reader, bases ...*Vocabulary) (*Vocabulary, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	def := &Definition{}
	err = yaml.Unmarshal(buf, def)
	if err != nil {
		return nil, errors.NewInvalidDefinitionError(fmt.Sprintf("failed to parse vocabulary definition: %s", err.Error()))
	}

	return def.Build(bases...)
}

type buildState int

const (
	unvisited buildState = iota
	visiting
	done
)

// Build creates the types of the definition, parents before children
func (d *Definition) Build(bases ...*Vocabulary) (*Vocabulary, error) {
	local := map[string]int{}

	for idx, td := range d.Types {
		if td.ID == "" {
			return nil, errors.NewInvalidDefinitionError(fmt.Sprintf("type number %d in vocabulary \"%s\" has no id", idx+1, d.Name))
		}

		if _, exists := local[td.ID]; exists {
			return nil, errors.NewInvalidDefinitionError(fmt.Sprintf("type %s is defined more than once", td.ID))
		}
		local[td.ID] = idx

		if td.Short != "" {
			if _, exists := local[td.Short]; !exists {
				local[td.Short] = idx
			}
		}
	}

	state := make([]buildState, len(d.Types))
	built := make([]*types.ASType, len(d.Types))

	var build func(idx int, path []string) (*types.ASType, error)
	build = func(idx int, path []string) (*types.ASType, error) {
		td := d.Types[idx]
		path = append(path, td.ID)

		switch state[idx] {
		case done:
			return built[idx], nil
		case visiting:
			return nil, errors.NewCyclicTypeGraphError(
				fmt.Sprintf("inheritance cycle detected: %s", strings.Join(path, " -> ")),
			)
		}

		state[idx] = visiting

		parents := make([]*types.ASType, 0, len(td.Parents))
		for _, ref := range td.Parents {
			if pidx, ok := local[ref]; ok {
				p, err := build(pidx, path)
				if err != nil {
					return nil, err
				}
				parents = append(parents, p)
				continue
			}

			p, ok := lookup(ref, bases)
			if !ok {
				return nil, fmt.Errorf("parent of %s could not be resolved: %w", td.ID, errors.NewUnknownTypeError(ref))
			}
			parents = append(parents, p)
		}

		decorators := []types.ASTypeDecoratorFunc{}
		if td.Short != "" {
			decorators = append(decorators, types.Short(td.Short))
		}
		if td.Notes != "" {
			decorators = append(decorators, types.Notes(strings.TrimSpace(td.Notes)))
		}
		if d.Core {
			decorators = append(decorators, types.Core())
		}

		built[idx] = types.New(td.ID, parents, decorators...)
		state[idx] = done

		return built[idx], nil
	}

	for idx := range d.Types {
		if _, err := build(idx, nil); err != nil {
			return nil, err
		}
	}

	return NewNamed(d.Name, built...), nil
}

func lookup(ref string, vocabs []*Vocabulary) (*types.ASType, bool) {
	for _, v := range vocabs {
		if t, ok := v.Lookup(ref); ok {
			return t, true
		}
	}

	for _, v := range vocabs {
		if t, ok := v.LookupShort(ref); ok {
			return t, true
		}
	}

	return nil, false
}
