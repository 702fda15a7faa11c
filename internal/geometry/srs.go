package geometry

// SRIDETRS89UTM32 is EPSG:4647, ETRS89 / UTM zone 32N with zone-prefixed easting.
const SRIDETRS89UTM32 = 4647

// SpatialRef describes a coordinate reference system by its WKT definition.
type SpatialRef struct {
	Name        string
	SRID        int
	Org         string
	OrgID       int
	Definition  string
	Description string
}

var spatialRefs = map[int]SpatialRef{
	SRIDETRS89UTM32: {
		Name:  "ETRS89 / UTM zone 32N (zE-N)",
		SRID:  SRIDETRS89UTM32,
		Org:   "EPSG",
		OrgID: SRIDETRS89UTM32,
		Definition: `PROJCS["ETRS89 / UTM zone 32N (zE-N)",` +
			`GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989",` +
			`SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],` +
			`TOWGS84[0,0,0,0,0,0,0],AUTHORITY["EPSG","6258"]],` +
			`PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
			`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4258"]],` +
			`PROJECTION["Transverse_Mercator"],` +
			`PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",9],` +
			`PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",32500000],` +
			`PARAMETER["false_northing",0],UNIT["metre",1,AUTHORITY["EPSG","9001"]],` +
			`AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","4647"]]`,
		Description: "official house coordinates NRW",
	},
	4326: {
		Name:  "WGS 84 geodetic",
		SRID:  4326,
		Org:   "EPSG",
		OrgID: 4326,
		Definition: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,` +
			`AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,` +
			`AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],` +
			`AUTHORITY["EPSG","4326"]]`,
		Description: "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
	},
	-1: {Name: "Undefined cartesian SRS", SRID: -1, Org: "NONE", OrgID: -1, Definition: "undefined", Description: "undefined cartesian coordinate reference system"},
	0:  {Name: "Undefined geographic SRS", SRID: 0, Org: "NONE", OrgID: 0, Definition: "undefined", Description: "undefined geographic coordinate reference system"},
}

// LookupSpatialRef returns the definition for srid.
func LookupSpatialRef(srid int) (SpatialRef, bool) {
	ref, ok := spatialRefs[srid]
	return ref, ok
}
