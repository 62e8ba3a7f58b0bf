package constants

// Warehouse

const (
	SchemaRaw          = "raw"
	SchemaStaging      = "staging"
	SchemaIntermediate = "intermediate"
	SchemaMart         = "mart"

	TableRawPlacesCounty      = "places_county"
	TableStgCountyHealth      = "stg_county_health"
	TableStgMeasureObs        = "stg_measure_observations"
	TableIntCountyRankings    = "int_county_rankings"
	TableIntStateProfiles     = "int_state_profiles"
	TableMartCountyHealth     = "mart_county_health"
	BuildTableSuffix          = "__build" // name suffix used while a table is rebuilt before the swap.
	LoaderBatchNumRowsDefault = 500
	WarehousePathDefault      = "data/warehouse.duckdb"
	LoadedAtColumnName        = "loaded_at"
	SourceFileColumnName      = "source_file"
)

// Extraction

const (
	SodaBaseUrlDefault    = "https://data.cdc.gov/resource"
	SodaDatasetCountyGis  = "d3i6-k6z5" // PLACES county GIS format: all measures in one row per county.
	SodaPageLimitDefault  = 50000
	SodaTimeoutSecDefault = 30
	SodaMaxRetriesDefault = 3
	SodaAppTokenHeader    = "X-App-Token"
	SourceNamePlaces      = "CDC_PLACES"
	RawDataDirDefault     = "data/raw"
	RawFilePrefixPlaces   = "places_county"
	EnvVarAppToken        = "HEALTHPULSE_APP_TOKEN"
	TimeFormatYearSeconds = "20060102T150405" // used for human readable file names
)

// Quality

const (
	QualityReportPathDefault = "data/quality/report.json"
	FreshnessMaxHoursDefault = 24
	SmallPopulationThreshold = 10000
)

// Mart data quality labels, evaluated in this precedence order.
const (
	QualityStatusIncomplete = "Incomplete Data"
	QualityStatusSmallPop   = "Small Population"
	QualityStatusValid      = "Valid"
)

// CLI

const (
	ServicePort     = 8080
	LogLevelDefault = "info"
	EmojiTick       = "\U00002705"
	EmojiCross      = "\U0000274C"
)
