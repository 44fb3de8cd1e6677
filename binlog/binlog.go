package binlog

import "strings"

type EventFlag uint16

// https://dev.mysql.com/doc/internals/en/binlog-event-flag.html
const (
	EventFlagBinlogInUse EventFlag = 1 << iota
	EventFlagForcedRotate
	EventFlagThreadSpecific
	EventFlagSuppressUse
	EventFlagUpdateTableMapVersion
	EventFlagArtificial
	EventFlagRelayLog
	EventFlagIgnorable
	EventFlagNoFilter
	EventFlagMtsIsolate
)

var eventFlagNames = []struct {
	flag EventFlag
	name string
}{
	{EventFlagBinlogInUse, "LOG_EVENT_BINLOG_IN_USE"},
	{EventFlagForcedRotate, "LOG_EVENT_FORCED_ROTATE"},
	{EventFlagThreadSpecific, "LOG_EVENT_THREAD_SPECIFIC"},
	{EventFlagSuppressUse, "LOG_EVENT_SUPPRESS_USE"},
	{EventFlagUpdateTableMapVersion, "LOG_EVENT_UPDATE_TABLE_MAP_VERSION"},
	{EventFlagArtificial, "LOG_EVENT_ARTIFICIAL"},
	{EventFlagRelayLog, "LOG_EVENT_RELAY_LOG"},
	{EventFlagIgnorable, "LOG_EVENT_IGNORABLE"},
	{EventFlagNoFilter, "LOG_EVENT_NO_FILTER"},
	{EventFlagMtsIsolate, "LOG_EVENT_MTS_ISOLATE"},
}

func (f EventFlag) String() string {
	var names []string
	for _, n := range eventFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return "[" + strings.Join(names, " ") + "]"
}

type ChecksumAlgorithm uint8

const (
	ChecksumAlgOff ChecksumAlgorithm = iota
	ChecksumAlgCRC32
	ChecksumAlgUndefined ChecksumAlgorithm = 255
)

// ParseChecksumAlgorithm maps the value of @@GLOBAL.binlog_checksum.
func ParseChecksumAlgorithm(s string) ChecksumAlgorithm {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return ChecksumAlgOff
	case "CRC32":
		return ChecksumAlgCRC32
	default:
		return ChecksumAlgUndefined
	}
}

func (a ChecksumAlgorithm) String() string {
	switch a {
	case ChecksumAlgOff:
		return "BINLOG_CHECKSUM_ALG_OFF"
	case ChecksumAlgCRC32:
		return "BINLOG_CHECKSUM_ALG_CRC32"
	case ChecksumAlgUndefined:
		return "BINLOG_CHECKSUM_ALG_UNDEF"
	default:
		return "unknown checksum algorithm"
	}
}

type QueryEventStatusVars uint8

const (
	QueryStatusVarsFlags2 QueryEventStatusVars = iota
	QueryStatusVarsSQLMode
	QueryStatusVarsCatalog
	QueryStatusVarsAutoIncrement
	QueryStatusVarsCharset
	QueryStatusVarsTimeZone
	QueryStatusVarsCatalogNz
	QueryStatusVarsLcTimeNames
	QueryStatusVarsCharsetDatabase
	QueryStatusVarsTableMapForUpdate
	QueryStatusVarsMasterDataWritten
	QueryStatusVarsInvoker
	QueryStatusVarsUpdatedDBNames
	QueryStatusVarsMicroseconds
	QueryStatusVarsCommitTS
	QueryStatusVarsCommitTS2
	QueryStatusVarsExplicitDefaultsForTimestamp
	QueryStatusVarsDDLLoggedWithXid
	QueryStatusVarsDefaultCollationForUtf8mb4
	QueryStatusVarsSQLRequirePrimaryKey
	QueryStatusVarsDefaultTableEncryption
)

type Ternary uint8

const (
	TernaryUnset Ternary = iota
	TernaryOff
	TernaryOn
)

type Option uint32

const (
	OptionAutoIsNull          Option = 1 << 14
	OptionNotAutocommit       Option = 1 << 19
	OptionNoForeignKeyChecks  Option = 1 << 26
	OptionRelaxedUniqueChecks Option = 1 << 27
)

type SQLMode uint64

const (
	SQLModeRealAsFloat SQLMode = 1 << iota
	SQLModePipesAsConcat
	SQLModeANSIQuotes
	SQLModeIgnoreSpace
	SQLModeNotUsed
	SQLModeOnlyFullGroupBy
	SQLModeNoUnsignedSubtraction
	SQLModeNoDirInCreate
	SQLModePostgreSQL
	SQLModeOracle
	SQLModeMSSQL
	SQLModeDB2
	SQLModeMaxDB
	SQLModeNoKeyOptions
	SQLModeNoTableOptions
	SQLModeNoFieldOptions
	SQLModeMySQL323
	SQLModeMySQL40
	SQLModeANSI
	SQLModeNoAutoValueOnZero
	SQLModeNoBackslashEscapes
	SQLModeStrictTransTables
	SQLModeStrictAllTables
	SQLModeNoZeroInDate
	SQLModeNoZeroDate
	SQLModeInvalidDates
	SQLModeErrorForDivisionByZero
	SQLModeTraditional
	SQLModeNoAutoCreateUser
	SQLModeHighNotPrecedence
	SQLModeNoEngineSubstitution
	SQLModePadCharToFullLength
)
