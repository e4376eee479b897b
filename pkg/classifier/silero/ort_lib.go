//go:build silero

package silero

import (
	"fmt"
	"os"
	"runtime"
)

// resolveORTLibPath returns the path to the ONNX Runtime shared library.
// The ASRSTREAMD_ORT_LIB_PATH environment variable, when set, always wins;
// otherwise the platform-default shared-library name is looked up on the
// dynamic linker's normal search path.
func resolveORTLibPath() (string, error) {
	if envPath := os.Getenv("ASRSTREAMD_ORT_LIB_PATH"); envPath != "" {
		info, err := os.Stat(envPath)
		if err != nil {
			return "", fmt.Errorf("silero: ASRSTREAMD_ORT_LIB_PATH=%q does not exist", envPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("silero: ASRSTREAMD_ORT_LIB_PATH=%q is a directory, expected a file", envPath)
		}
		return envPath, nil
	}
	return ortLibFilename(), nil
}

func ortLibFilename() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
