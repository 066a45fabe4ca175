package dimension

import "github.com/gridcube/gridcube/pkg/gridcube"

// Subset returns the member ids of a named subset, in definition order.
func (d *Dimension) Subset(name string) ([]gridcube.MemberID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids, ok := d.subsets[name]
	if !ok {
		return nil, false
	}
	return append([]gridcube.MemberID(nil), ids...), true
}

// MembersByAttribute returns the members whose attribute attr equals value
// (compared via fmt.Sprint, matching the indexing key used when the
// attribute was set).
func (d *Dimension) MembersByAttribute(attr, value string) []gridcube.MemberID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.attrIndex[attr]
	if !ok {
		return nil
	}
	return append([]gridcube.MemberID(nil), idx[value]...)
}

// HasAttribute reports whether attr is a defined attribute name on this dimension.
func (d *Dimension) HasAttribute(attr string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.attrNames[attr]
}
