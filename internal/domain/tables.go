package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&User{},
	// Catalog
	&Category{},
	&Product{},
	&ProductImage{},
	&Review{},
	// Shop
	&Cart{},
	&CartItem{},
	&Offer{},
}
