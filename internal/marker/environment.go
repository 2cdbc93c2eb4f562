package marker

import "fmt"

// Environment holds the variables an environment marker is evaluated
// against, mirroring what a Python installer reports about the target
// interpreter and platform.
type Environment struct {
	PythonVersion                string
	PythonFullVersion            string
	OSName                       string
	SysPlatform                  string
	PlatformMachine              string
	PlatformSystem               string
	PlatformRelease              string
	PlatformVersion              string
	PlatformPythonImplementation string
	ImplementationName           string
	ImplementationVersion        string
	Extra                        string
}

// DefaultEnvironment returns a CPython 3.11 on Linux x86_64 baseline.
func DefaultEnvironment() Environment {
	return Environment{
		PythonVersion:                "3.11",
		PythonFullVersion:            "3.11.9",
		OSName:                       "posix",
		SysPlatform:                  "linux",
		PlatformMachine:              "x86_64",
		PlatformSystem:               "Linux",
		PlatformPythonImplementation: "CPython",
		ImplementationName:           "cpython",
		ImplementationVersion:        "3.11.9",
	}
}

// Lookup returns the value of a marker variable by its marker-grammar name.
func (e Environment) Lookup(name string) (string, error) {
	switch name {
	case "python_version":
		return e.PythonVersion, nil
	case "python_full_version":
		return e.PythonFullVersion, nil
	case "os_name":
		return e.OSName, nil
	case "sys_platform":
		return e.SysPlatform, nil
	case "platform_machine":
		return e.PlatformMachine, nil
	case "platform_system":
		return e.PlatformSystem, nil
	case "platform_release":
		return e.PlatformRelease, nil
	case "platform_version":
		return e.PlatformVersion, nil
	case "platform_python_implementation":
		return e.PlatformPythonImplementation, nil
	case "implementation_name":
		return e.ImplementationName, nil
	case "implementation_version":
		return e.ImplementationVersion, nil
	case "extra":
		return e.Extra, nil
	}
	return "", fmt.Errorf("unknown marker variable %q", name)
}

// Set overrides a marker variable by its marker-grammar name.
func (e *Environment) Set(name, value string) error {
	switch name {
	case "python_version":
		e.PythonVersion = value
	case "python_full_version":
		e.PythonFullVersion = value
	case "os_name":
		e.OSName = value
	case "sys_platform":
		e.SysPlatform = value
	case "platform_machine":
		e.PlatformMachine = value
	case "platform_system":
		e.PlatformSystem = value
	case "platform_release":
		e.PlatformRelease = value
	case "platform_version":
		e.PlatformVersion = value
	case "platform_python_implementation":
		e.PlatformPythonImplementation = value
	case "implementation_name":
		e.ImplementationName = value
	case "implementation_version":
		e.ImplementationVersion = value
	case "extra":
		e.Extra = value
	default:
		return fmt.Errorf("unknown marker variable %q", name)
	}
	return nil
}
