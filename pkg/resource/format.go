package resource

import (
	"path"
	"strings"
)

// Format names a model file format.
type Format string

// Recognized model formats.
const (
	FormatUnknown Format = ""
	FormatGLB     Format = "glb"
	FormatGLTF    Format = "gltf"
	FormatOBJ     Format = "obj"
	FormatSTL     Format = "stl"
	FormatFBX     Format = "fbx"
)

// FormatFromPath infers the format from a path or URL extension.
func FormatFromPath(p string) Format {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".glb":
		return FormatGLB
	case ".gltf":
		return FormatGLTF
	case ".obj":
		return FormatOBJ
	case ".stl":
		return FormatSTL
	case ".fbx":
		return FormatFBX
	}
	return FormatUnknown
}

// Supported reports whether a parser exists for the format.
func (f Format) Supported() bool {
	switch f {
	case FormatGLB, FormatGLTF, FormatOBJ, FormatSTL:
		return true
	}
	return false
}

// Recognized reports whether the format is a known model format, supported or not.
func (f Format) Recognized() bool {
	return f.Supported() || f == FormatFBX
}

// formatFromMediaType maps data URI media types to formats.
func formatFromMediaType(mt string) Format {
	switch strings.ToLower(mt) {
	case "model/gltf-binary":
		return FormatGLB
	case "model/gltf+json":
		return FormatGLTF
	case "model/stl", "model/x.stl-binary", "model/x.stl-ascii", "application/sla":
		return FormatSTL
	case "model/obj":
		return FormatOBJ
	}
	return FormatUnknown
}
