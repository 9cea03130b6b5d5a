package metrics

/*
Labels and so on for metrics used in seedy.
*/

const (
	LabelSuccess = "success"
	LabelOutcome = "outcome"
	LabelRegion  = "region"
	LabelStage   = "stage"
)
