// Package bpath canonicalizes absolute paths: collapsing repeated slashes,
// resolving "." and ".." components, and producing the slash-separated
// canonical form the VFS path walker (package vfs) and fd.Cwd_t expect. The
// teacher's own `bpath` was an empty stub in the retrieval pack; this is
// built from its single call site (fd/fd.go's Cwd_t.Canonicalpath) and
// original_source/kernel/vfs/path.c's component splitting
// (path_next_part/path_basename/path_dirname).
package bpath

import "ember/ustr"

// Canonicalize resolves p (assumed absolute) into canonical form: no
// repeated slashes, no "." components, ".." components popped against
// whatever preceded them (a leading ".." past the root is simply dropped,
// matching path_drop_first's behavior of never walking past an empty view).
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	parts := split(p)
	out := make([]ustr.Ustr, 0, len(parts))
	for _, c := range parts {
		switch {
		case len(c) == 0:
			continue
		case c.Isdot():
			continue
		case c.Isdotdot():
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	return join(out)
}

// split breaks p into its slash-separated components, dropping empty
// components that repeated or leading/trailing slashes would otherwise
// produce.
func split(p ustr.Ustr) []ustr.Ustr {
	var parts []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// join re-assembles canonical components into an absolute Ustr, always
// rooted at "/" even when out is empty.
func join(parts []ustr.Ustr) ustr.Ustr {
	if len(parts) == 0 {
		return ustr.MkUstrRoot()
	}
	r := ustr.Ustr{}
	for _, c := range parts {
		r = append(r, '/')
		r = append(r, c...)
	}
	return r
}

// Basename returns the final path component. A root or empty path
// canonicalizes to no components, and both return "/".
func Basename(p ustr.Ustr) ustr.Ustr {
	parts := split(Canonicalize(p))
	if len(parts) == 0 {
		return ustr.MkUstrRoot()
	}
	return parts[len(parts)-1]
}

// Dirname returns all but the final path component, "/" if p names a
// top-level entry.
func Dirname(p ustr.Ustr) ustr.Ustr {
	parts := split(Canonicalize(p))
	if len(parts) <= 1 {
		return ustr.MkUstrRoot()
	}
	return join(parts[:len(parts)-1])
}
