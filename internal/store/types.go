package store

import "time"

type File struct {
	ID         int64
	URI        string
	Version    int32
	Hash       string
	LineCount  int
	ExportedAt time.Time
}

type Symbol struct {
	ID            int64
	FileID        int64
	Key           string
	Name          string
	Kind          string
	Scope         string
	Container     string
	Params        []string
	SignatureHash string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	NameLine      int
	NameCol       int
}

type Reference struct {
	ID            int64
	FileID        int64
	Key           string
	Name          string
	Context       string
	Scope         string
	Container     string
	IsDefinition  bool
	IsDeclaration bool
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
}
