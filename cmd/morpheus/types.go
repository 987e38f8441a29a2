package main

// CLIResult is the top-level envelope for all commands.
type CLIResult struct {
	Command    string `json:"command" yaml:"command"`
	Results    any    `json:"results" yaml:"results"`
	TotalCount *int   `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLILocation is a file range. Lines and columns are 0-based.
type CLILocation struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	StartCol  int    `json:"start_col" yaml:"start_col"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
	EndCol    int    `json:"end_col" yaml:"end_col"`
}

// CLISymbol is a definition site.
type CLISymbol struct {
	Name      string   `json:"name" yaml:"name"`
	Kind      string   `json:"kind" yaml:"kind"`
	Scope     string   `json:"scope,omitempty" yaml:"scope,omitempty"`
	Container string   `json:"container,omitempty" yaml:"container,omitempty"`
	Params    []string `json:"params,omitempty" yaml:"params,omitempty"`
	File      string   `json:"file" yaml:"file"`
	StartLine int      `json:"start_line" yaml:"start_line"`
	StartCol  int      `json:"start_col" yaml:"start_col"`
	EndLine   int      `json:"end_line" yaml:"end_line"`
	EndCol    int      `json:"end_col" yaml:"end_col"`
}

// CLIStats summarises one name across the workspace.
type CLIStats struct {
	Name         string   `json:"name" yaml:"name"`
	Definitions  int      `json:"definitions" yaml:"definitions"`
	References   int      `json:"references" yaml:"references"`
	Declarations int      `json:"declarations" yaml:"declarations"`
	Files        []string `json:"files" yaml:"files"`
	Suggestions  []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// CLIThread is a thread with its parameters.
type CLIThread struct {
	Name   string   `json:"name" yaml:"name"`
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
	File   string   `json:"file" yaml:"file"`
	Line   int      `json:"line" yaml:"line"`
}

// CLIEdit is one text replacement of a rename.
type CLIEdit struct {
	CLILocation `yaml:",inline"`
	NewText     string `json:"new_text" yaml:"new_text"`
}

// CLIDiagnostic is one syntax error.
type CLIDiagnostic struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
	Col     int    `json:"col" yaml:"col"`
	Message string `json:"message" yaml:"message"`
}

// CLIIndexSummary reports what an index run did.
type CLIIndexSummary struct {
	Root       string `json:"root" yaml:"root"`
	Loaded     int    `json:"loaded" yaml:"loaded"`
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Exported   int    `json:"exported" yaml:"exported"`
	Files      int    `json:"files" yaml:"files"`
	Symbols    int    `json:"symbols" yaml:"symbols"`
	References int    `json:"references" yaml:"references"`
}
