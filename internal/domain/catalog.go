package domain

import "time"

// DeviceCategory lists the brands and models known for a device type
type DeviceCategory struct {
	Name      string              `json:"device_type"`
	Brands    []string            `json:"brands"`
	Models    map[string][]string `json:"models"`
	CreatedAt time.Time           `json:"-"`
	UpdatedAt time.Time           `json:"-"`
}

// AddDevice merges brand and model into the category and reports whether it changed
func (c *DeviceCategory) AddDevice(brand, model string) bool {
	changed := false
	if !contains(c.Brands, brand) {
		c.Brands = append(c.Brands, brand)
		changed = true
	}
	if c.Models == nil {
		c.Models = make(map[string][]string)
	}
	models, ok := c.Models[brand]
	if !ok {
		models = []string{}
		changed = true
	}
	if model != "" && !contains(models, model) {
		models = append(models, model)
		changed = true
	}
	c.Models[brand] = models
	return changed
}

// DeviceList is the catalog listing
type DeviceList struct {
	Devices    []*DeviceCategory `json:"devices"`
	TotalCount int               `json:"total_count"`
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
