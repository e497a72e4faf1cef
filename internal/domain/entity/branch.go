package entity

// Branch sucursal donde se almacena mercadería. La mantiene el catálogo; aquí solo se lee.
type Branch struct {
	ID      string
	Name    string
	Address string
	Active  bool
}
