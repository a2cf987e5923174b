package httpadapter

// suggestedRegion is a well-known bloom site offered to API clients.
type suggestedRegion struct {
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Country     string  `json:"country"`
	State       string  `json:"state"`
	Description string  `json:"description"`
	BestSeason  string  `json:"best_season"`
	BloomType   string  `json:"bloom_type"`
	ScanRegion  string  `json:"scan_region,omitempty"` // key accepted by /api/regions/scan
}

var suggestedRegions = []suggestedRegion{
	{
		Name: "Antelope Valley California Poppy Reserve", Lat: 34.745, Lon: -118.376,
		Country: "USA", State: "California",
		Description: "Spring superblooms of California poppies",
		BestSeason:  "Spring (March-May)", BloomType: "Wildflower superbloom",
		ScanRegion: "antelope_valley",
	},
	{
		Name: "Carrizo Plain National Monument", Lat: 35.193, Lon: -119.867,
		Country: "USA", State: "California",
		Description: "Wildflower displays after wet winters",
		BestSeason:  "Spring (March-May)", BloomType: "Desert wildflowers",
		ScanRegion: "carrizo_plain",
	},
	{
		Name: "Death Valley National Park", Lat: 36.505, Lon: -117.079,
		Country: "USA", State: "California",
		Description: "Rare desert superbloom",
		BestSeason:  "Spring (February-April)", BloomType: "Desert wildflowers",
		ScanRegion: "death_valley",
	},
	{
		Name: "Cherry Blossom - Washington DC", Lat: 38.889, Lon: -77.050,
		Country: "USA", State: "DC",
		Description: "Cherry blossoms around the Tidal Basin",
		BestSeason:  "Spring (late March-early April)", BloomType: "Tree blossoms",
		ScanRegion: "washington_dc",
	},
	{
		Name: "Namaqualand", Lat: -30.221, Lon: 17.902,
		Country: "South Africa", State: "Northern Cape",
		Description: "Spring flower carpets across the semi-desert",
		BestSeason:  "Spring (August-September)", BloomType: "Wildflower carpet",
	},
	{
		Name: "Great Plains - Kansas", Lat: 38.500, Lon: -96.800,
		Country: "USA", State: "Kansas",
		Description: "Tallgrass prairie blooms",
		BestSeason:  "Summer (June-August)", BloomType: "Prairie flowers",
		ScanRegion: "great_plains_kansas",
	},
	{
		Name: "Atacama Desert", Lat: -24.500, Lon: -69.250,
		Country: "Chile", State: "Antofagasta",
		Description: "Flowering desert (desierto florido) in El Niño years",
		BestSeason:  "Spring (September-November)", BloomType: "Desert bloom",
	},
}
