package rotation

// Next returns the member after current in the rotation, wrapping from the
// last entry to the first. A single-member rotation always yields that member.
// If current is not in the rotation the state is treated as reset and the
// first member is returned. An empty rotation yields "".
func Next(rotation []string, current string) string {
	if len(rotation) == 0 {
		return ""
	}
	if len(rotation) == 1 {
		return rotation[0]
	}
	for i, id := range rotation {
		if id == current {
			return rotation[(i+1)%len(rotation)]
		}
	}
	return rotation[0]
}
