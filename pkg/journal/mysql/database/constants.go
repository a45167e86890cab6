package dozeprobeMysql

// Session status constants - using TINYINT values
const (
	SessionStatusActive    int8 = 1 // acquire cycle running
	SessionStatusEnded     int8 = 0 // released
	SessionStatusDeletable int8 = 2 // kept past retention
)
