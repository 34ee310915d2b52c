package classifier

import "os"

// ONNXEnabled reports whether the ONNX encoder family may be used.
// Default is disabled; set PHISHXAI_ENABLE_ONNX=true to opt-in. This keeps
// installs without a model directory quiet unless explicitly enabled.
func ONNXEnabled() bool {
	if isTrue(os.Getenv("PHISHXAI_ENABLE_ONNX")) {
		return true
	}
	if isTrue(os.Getenv("PHISHXAI_FAMILY_ONNX")) {
		return true
	}
	return false
}

func isTrue(v string) bool {
	switch v {
	case "1", "true", "TRUE", "yes", "YES", "on", "ON":
		return true
	default:
		return false
	}
}
