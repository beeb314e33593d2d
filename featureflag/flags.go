package featureflag

type Flag string

const (
	FlagDisableElementChurn Flag = "DISABLE_ELEMENT_CHURN"
	FlagDisableCellReclaim  Flag = "DISABLE_CELL_RECLAIM"
	FlagDisableLineTraces   Flag = "DISABLE_LINE_TRACES"
	FlagUncachedQueries     Flag = "UNCACHED_QUERIES"
)
