package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/types"
)

// SetPath writes a value at a dot-addressed leaf or entity path in the
// bundle. Feature and story segments are matched by normalized key, so the
// same paths work across producers' key conventions.
//
// Supported paths:
//
//	idea.title, idea.context
//	metadata.stage, metadata.provenance
//	features.<key>                                  (entity: *types.Feature or nil to delete)
//	features.<key>.<field>                          (title, confidence, draft, outcomes, acceptance, constraints)
//	features.<key>.stories.<key>                    (entity: *types.Story or nil to delete)
//	features.<key>.stories.<key>.<field>            (title, confidence, draft, acceptance, tags)
func SetPath(b *types.Bundle, path string, value any) error {
	segs := strings.Split(path, ".")

	switch segs[0] {
	case "idea":
		if len(segs) != 2 {
			return pathErr(path)
		}
		s, ok := value.(string)
		if !ok {
			return typeErr(path, "string", value)
		}
		if b.Idea == nil {
			b.Idea = &types.IdeaBlock{}
		}
		switch segs[1] {
		case "title":
			b.Idea.Title = s
		case "context":
			b.Idea.Context = s
		default:
			return pathErr(path)
		}
		return nil

	case "metadata":
		if len(segs) != 2 {
			return pathErr(path)
		}
		switch segs[1] {
		case "stage":
			switch v := value.(type) {
			case types.Stage:
				b.Metadata.Stage = v
			case string:
				b.Metadata.Stage = types.Stage(v)
			default:
				return typeErr(path, "stage", value)
			}
		case "provenance":
			s, ok := value.(string)
			if !ok {
				return typeErr(path, "string", value)
			}
			b.Metadata.Provenance = s
		default:
			return pathErr(path)
		}
		return nil

	case "features":
		if len(segs) < 2 {
			return pathErr(path)
		}
		return setFeaturePath(b, path, segs[1:], value)
	}

	return pathErr(path)
}

func setFeaturePath(b *types.Bundle, path string, segs []string, value any) error {
	key := segs[0]

	if len(segs) == 1 {
		// Entity-level: replace, add, or delete the feature.
		switch v := value.(type) {
		case *types.Feature:
			if v == nil {
				return deleteFeature(b, key)
			}
			if f := findFeature(b, key); f != nil {
				*f = *v
			} else {
				b.Features = append(b.Features, *v)
			}
			return nil
		case nil:
			return deleteFeature(b, key)
		default:
			return typeErr(path, "*types.Feature", value)
		}
	}

	f := findFeature(b, key)
	if f == nil {
		return fmt.Errorf("no feature matching key %q at path %q", key, path)
	}

	if segs[1] == "stories" {
		if len(segs) < 3 {
			return pathErr(path)
		}
		return setStoryPath(f, path, segs[2:], value)
	}

	if len(segs) != 2 {
		return pathErr(path)
	}
	switch segs[1] {
	case "title":
		return setString(&f.Title, path, value)
	case "confidence":
		return setFloat(&f.Confidence, path, value)
	case "draft":
		return setBool(&f.Draft, path, value)
	case "outcomes":
		return setStrings(&f.Outcomes, path, value)
	case "acceptance":
		return setStrings(&f.Acceptance, path, value)
	case "constraints":
		return setStrings(&f.Constraints, path, value)
	}
	return pathErr(path)
}

func setStoryPath(f *types.Feature, path string, segs []string, value any) error {
	key := segs[0]

	if len(segs) == 1 {
		switch v := value.(type) {
		case *types.Story:
			if v == nil {
				return deleteStory(f, key)
			}
			if s := findStory(f, key); s != nil {
				*s = *v
			} else {
				f.Stories = append(f.Stories, *v)
			}
			return nil
		case nil:
			return deleteStory(f, key)
		default:
			return typeErr(path, "*types.Story", value)
		}
	}

	s := findStory(f, key)
	if s == nil {
		return fmt.Errorf("no story matching key %q at path %q", key, path)
	}

	if len(segs) != 2 {
		return pathErr(path)
	}
	switch segs[1] {
	case "title":
		return setString(&s.Title, path, value)
	case "confidence":
		return setFloat(&s.Confidence, path, value)
	case "draft":
		return setBool(&s.Draft, path, value)
	case "acceptance":
		return setStrings(&s.Acceptance, path, value)
	case "tags":
		return setStrings(&s.Tags, path, value)
	}
	return pathErr(path)
}

// ApplyResolution writes an externally settled conflict value back into the
// merged bundle and records the resolution on the conflict.
func ApplyResolution(b *types.Bundle, c *Conflict, value any) error {
	if err := SetPath(b, c.Path, value); err != nil {
		return fmt.Errorf("applying resolution for %s: %w", c.Path, err)
	}
	c.SettleManually(value)
	return nil
}

// ParseValue converts raw user input to the value type expected at a leaf
// path: float for confidence, bool for draft, comma-separated list for
// list-valued fields, plain string otherwise.
func ParseValue(path, raw string) (any, error) {
	last := path[strings.LastIndex(path, ".")+1:]
	switch last {
	case "confidence":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid confidence %q: %w", raw, err)
		}
		return v, nil
	case "draft":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid draft flag %q: %w", raw, err)
		}
		return v, nil
	case "outcomes", "acceptance", "constraints", "tags":
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil
	}
	return raw, nil
}

func findFeature(b *types.Bundle, key string) *types.Feature {
	nk := normalize.Key(key)
	for i := range b.Features {
		if normalize.Key(b.Features[i].Key) == nk {
			return &b.Features[i]
		}
	}
	return nil
}

func deleteFeature(b *types.Bundle, key string) error {
	nk := normalize.Key(key)
	for i := range b.Features {
		if normalize.Key(b.Features[i].Key) == nk {
			b.Features = append(b.Features[:i], b.Features[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no feature matching key %q", key)
}

func findStory(f *types.Feature, key string) *types.Story {
	nk := normalize.Key(key)
	for i := range f.Stories {
		if normalize.Key(f.Stories[i].Key) == nk {
			return &f.Stories[i]
		}
	}
	return nil
}

func deleteStory(f *types.Feature, key string) error {
	nk := normalize.Key(key)
	for i := range f.Stories {
		if normalize.Key(f.Stories[i].Key) == nk {
			f.Stories = append(f.Stories[:i], f.Stories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no story matching key %q", key)
}

func setString(dst *string, path string, value any) error {
	s, ok := value.(string)
	if !ok {
		return typeErr(path, "string", value)
	}
	*dst = s
	return nil
}

func setFloat(dst *float64, path string, value any) error {
	f, ok := value.(float64)
	if !ok {
		return typeErr(path, "float64", value)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, path string, value any) error {
	b, ok := value.(bool)
	if !ok {
		return typeErr(path, "bool", value)
	}
	*dst = b
	return nil
}

func setStrings(dst *[]string, path string, value any) error {
	switch v := value.(type) {
	case []string:
		*dst = v
		return nil
	default:
		return typeErr(path, "[]string", value)
	}
}

func pathErr(path string) error {
	return fmt.Errorf("unsupported bundle path %q", path)
}

func typeErr(path, want string, got any) error {
	return fmt.Errorf("path %q expects %s, got %T", path, want, got)
}
