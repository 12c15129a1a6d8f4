package config

// CameraChanges lists camera ids that differ between two resolved configs.
type CameraChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether nothing changed.
func (c CameraChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Diff compares two resolved camera lists by id. Results follow the order of
// next for added and changed cameras, and of prev for removed ones.
func Diff(prev, next []EffectiveConfig) CameraChanges {
	before := make(map[string]EffectiveConfig, len(prev))
	for _, cam := range prev {
		before[cam.ID] = cam
	}
	after := make(map[string]struct{}, len(next))

	var changes CameraChanges
	for _, cam := range next {
		after[cam.ID] = struct{}{}
		old, ok := before[cam.ID]
		switch {
		case !ok:
			changes.Added = append(changes.Added, cam.ID)
		case old != cam:
			changes.Changed = append(changes.Changed, cam.ID)
		}
	}
	for _, cam := range prev {
		if _, ok := after[cam.ID]; !ok {
			changes.Removed = append(changes.Removed, cam.ID)
		}
	}
	return changes
}
