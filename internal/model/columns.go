package model

// Column is a raw column name of the BDNB building export.
type Column string

// Raw BDNB columns read by the API.
const (
	ColGeometry               Column = "geometry"
	ColAddressLabel           Column = "etaban202111_label"
	ColBuildingType           Column = "adedpe202006_logtype_type_batiment"
	ColConstructionYear       Column = "cerffo2020_annee_construction"
	ColNumberOfUnits          Column = "cerffo2020_nb_log"
	ColHabitableSurface       Column = "adedpe202006_logtype_shab"
	ColHeatingEnergyType      Column = "adedpe202006_logtype_ch_type_ener_corr"
	ColHotWaterEnergyType     Column = "adedpe202006_logtype_ecs_type_ener"
	ColEnergyLabel            Column = "adedpe202006_mean_class_conso_ener"
	ColEnergyConsumption      Column = "adedpe202006_mean_conso_ener"
	ColCarbonLabel            Column = "adedpe202006_mean_class_estim_ges"
	ColCarbonEstimate         Column = "adedpe202006_mean_estim_ges"
	ColElectricityConsumption Column = "mtedle2019_elec_conso_tot"
	ColGasConsumption         Column = "mtedle2019_gaz_conso_tot"
	ColHeatingGeneratorLabel  Column = "adedpe202006_logtype_ch_gen_lib_princ"
	ColHotWaterGeneratorLabel Column = "adedpe202006_logtype_ecs_gen_lib_princ"
)

// Kind is the storage type of an attribute column.
type Kind int

// Attribute kinds.
const (
	KindText Kind = iota
	KindInt
	KindFloat
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "text"
	}
}

// attributeKinds lists every attribute column a BuildingRecord can hold.
var attributeKinds = map[Column]Kind{
	ColAddressLabel:           KindText,
	ColBuildingType:           KindText,
	ColConstructionYear:       KindInt,
	ColNumberOfUnits:          KindInt,
	ColHabitableSurface:       KindFloat,
	ColHeatingEnergyType:      KindText,
	ColHotWaterEnergyType:     KindText,
	ColEnergyLabel:            KindText,
	ColEnergyConsumption:      KindFloat,
	ColCarbonLabel:            KindText,
	ColCarbonEstimate:         KindFloat,
	ColElectricityConsumption: KindFloat,
	ColGasConsumption:         KindFloat,
	ColHeatingGeneratorLabel:  KindText,
	ColHotWaterGeneratorLabel: KindText,
}

// KindOf returns the kind of an attribute column. The geometry column and
// unknown names report false.
func KindOf(c Column) (Kind, bool) {
	k, ok := attributeKinds[c]
	return k, ok
}

// IsAttribute reports whether c is a known non-geometry column.
func IsAttribute(c Column) bool {
	_, ok := attributeKinds[c]
	return ok
}

// AttributeColumns returns every attribute column in declaration order.
func AttributeColumns() []Column {
	return []Column{
		ColAddressLabel,
		ColBuildingType,
		ColConstructionYear,
		ColNumberOfUnits,
		ColHabitableSurface,
		ColHeatingEnergyType,
		ColHotWaterEnergyType,
		ColEnergyLabel,
		ColEnergyConsumption,
		ColCarbonLabel,
		ColCarbonEstimate,
		ColElectricityConsumption,
		ColGasConsumption,
		ColHeatingGeneratorLabel,
		ColHotWaterGeneratorLabel,
	}
}
