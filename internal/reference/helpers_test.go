package reference

import "github.com/address-resolver/app/models"

func findUnit(units []models.ReferenceUnit, neighborhood string) models.ReferenceUnit {
	for _, u := range units {
		if u.NeighborhoodName == neighborhood {
			return u
		}
	}
	return models.ReferenceUnit{}
}
