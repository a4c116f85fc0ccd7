package fat16

import "strings"

// to83 converts a display-form name like "readme.txt" into its 11-byte
// on-disk form "README  TXT": upper case, 8-byte name padded with
// spaces, 3-byte extension padded with spaces, no dot stored.
func to83(name string) ([11]byte, bool) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	if name == "." || name == ".." {
		// the self and parent entries are the dots, space padded
		copy(out[:], name)
		return out, true
	}

	base, ext, _ := strings.Cut(strings.ToUpper(name), ".")
	if len(base) > 8 || len(ext) > 3 {
		return out, false
	}
	copy(out[0:8], base)
	copy(out[8:11], ext)
	return out, true
}

// from83 converts an on-disk 11-byte name back to lowercase display
// form, e.g. "README  TXT" -> "readme.txt".
func from83(raw [11]byte) string {
	base := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	name := strings.ToLower(base)
	if ext != "" {
		name += "." + strings.ToLower(ext)
	}
	return name
}

// splitPath divides a path into an optional directory component and a
// final name. A path contains at most one '/'.
func splitPath(path string) (dir, name string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
