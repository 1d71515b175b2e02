package indicator

// Definition pairs a model feature name with its World Bank indicator code.
type Definition struct {
	Name string
	Code string
}

// Catalog is the fixed set of education indicators, in model feature order.
var Catalog = []Definition{
	{Name: "OOSR_Primary_Age_Male", Code: "SE.PRM.UNER.MA"},
	{Name: "OOSR_Primary_Age_Female", Code: "SE.PRM.UNER.FE"},
	{Name: "Youth_15_24_Literacy_Rate_Male", Code: "SE.ADT.1524.LT.MA.ZS"},
	{Name: "Youth_15_24_Literacy_Rate_Female", Code: "SE.ADT.1524.LT.FE.ZS"},
	{Name: "Gross_Primary_Education_Enrollment", Code: "SE.PRM.ENRR"},
	{Name: "Gross_Tertiary_Education_Enrollment", Code: "SE.TER.ENRR"},
	{Name: "Birth_Rate", Code: "SP.DYN.CBRT.IN"},
	{Name: "Unemployment_Rate", Code: "SL.UEM.TOTL.ZS"},
}

// Names returns the catalog feature names in order.
func Names() []string {
	out := make([]string, len(Catalog))
	for i, d := range Catalog {
		out[i] = d.Name
	}
	return out
}
