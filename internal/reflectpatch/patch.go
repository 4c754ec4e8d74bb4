package reflectpatch

import (
	"fmt"
	"reflect"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

// Patch is an immutable, ordered set of chunks/sections that mutates a
// typed target instance (spec §3.11). Patches are built once and may be
// applied any number of times.
type Patch struct {
	targetType reflect.Type
	sections   map[int]sectionBuild
	sectionIDs []int // ascending, root (0) first — parent declared before child by construction
	chunks     map[int][]chunkBuild
}

// resolveSectionTarget walks from the root instance down to the dynamic
// array field a section targets and returns that slice field. It does not
// grow or reserve slots; Apply does that.
func (p *Patch) resolveSectionTarget(root reflect.Value, sectionID int) (reflect.Value, error) {
	if sectionID == RootSection {
		return root, nil
	}
	s := p.sections[sectionID]
	parentVal, err := p.resolveSectionTarget(root, s.parentID)
	if err != nil {
		return reflect.Value{}, err
	}

	field := parentVal.FieldByName(s.field)
	if !field.IsValid() {
		return reflect.Value{}, fmt.Errorf("reflectpatch: unknown field %q: %w", s.field, errs.ErrInvalidArgument)
	}
	if field.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("reflectpatch: field %q is not a dynamic array: %w", s.field, errs.ErrValidation)
	}
	return field, nil
}

// Apply walks sections in topological order (parent before child),
// growing array-set targets to the greatest chunk-implied index,
// reserving one fresh slot for array-append sections, then writes every
// chunk's bytes. target must be a non-nil pointer to an instance of the
// patch's target type.
func Apply(p *Patch, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("reflectpatch: target must be a non-nil pointer: %w", errs.ErrInvalidArgument)
	}
	root := v.Elem()
	if root.Type() != p.targetType {
		return fmt.Errorf("reflectpatch: target type %s does not match patch type %s: %w", root.Type(), p.targetType, errs.ErrInvalidArgument)
	}

	for _, sid := range p.sectionIDs {
		chunks := p.chunks[sid]
		if len(chunks) == 0 {
			continue
		}

		if sid == RootSection {
			for _, c := range chunks {
				fieldVal := root.FieldByName(c.field)
				if !fieldVal.IsValid() || !fieldVal.CanSet() {
					return fmt.Errorf("reflectpatch: cannot set root field %q: %w", c.field, errs.ErrInvalidArgument)
				}
				fieldVal.Set(reflect.ValueOf(c.value).Convert(fieldVal.Type()))
			}
			continue
		}

		s := p.sections[sid]
		sliceField, err := p.resolveSectionTarget(root, sid)
		if err != nil {
			return err
		}

		switch s.kind {
		case ArraySet:
			maxIndex := -1
			for _, c := range chunks {
				if c.index > maxIndex {
					maxIndex = c.index
				}
			}
			wantLen := maxIndex + 1
			if sliceField.Len() < wantLen {
				grown := reflect.MakeSlice(sliceField.Type(), wantLen, wantLen)
				reflect.Copy(grown, sliceField)
				sliceField.Set(grown)
			} else if sliceField.Len() > wantLen {
				// Trim dangling capacity back to the chunk-implied bound.
				sliceField.Set(sliceField.Slice(0, wantLen))
			}
			for _, c := range chunks {
				elem := sliceField.Index(c.index)
				if err := setElement(elem, c); err != nil {
					return err
				}
			}

		case ArrayAppend:
			elemType := sliceField.Type().Elem()
			newElem := reflect.New(elemType).Elem()
			for _, c := range chunks {
				if err := setElement(newElem, c); err != nil {
					return err
				}
			}
			sliceField.Set(reflect.Append(sliceField, newElem))
		}
	}
	return nil
}

func setElement(elem reflect.Value, c chunkBuild) error {
	if c.field == "" {
		elem.Set(reflect.ValueOf(c.value).Convert(elem.Type()))
		return nil
	}
	f := elem.FieldByName(c.field)
	if !f.IsValid() || !f.CanSet() {
		return fmt.Errorf("reflectpatch: cannot set element field %q: %w", c.field, errs.ErrInvalidArgument)
	}
	f.Set(reflect.ValueOf(c.value).Convert(f.Type()))
	return nil
}
