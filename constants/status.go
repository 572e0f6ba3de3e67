package constants

// Stage names one step of a pipeline run. Stage values appear in logs and error payloads.
type Stage string

const (
	StageExtract   Stage = "EXTRACT"   // stage 1: pdf -> text
	StageStructure Stage = "STRUCTURE" // stage 2: text -> model answer
	StageExport    Stage = "EXPORT"    // stage 3: rows -> xlsx
)
