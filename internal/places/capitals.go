package places

import "github.com/jacob-sheng/iran-situation-room/internal/intel"

// capitalsByCountry maps canonical country names to their capital city.
var capitalsByCountry = map[string]Capital{
	"Afghanistan":          {"Kabul", intel.Coordinates{69.2075, 34.5553}},
	"Albania":              {"Tirana", intel.Coordinates{19.8187, 41.3275}},
	"Algeria":              {"Algiers", intel.Coordinates{3.0588, 36.7538}},
	"Angola":               {"Luanda", intel.Coordinates{13.2344, -8.8390}},
	"Argentina":            {"Buenos Aires", intel.Coordinates{-58.3816, -34.6037}},
	"Armenia":              {"Yerevan", intel.Coordinates{44.5152, 40.1872}},
	"Australia":            {"Canberra", intel.Coordinates{149.1300, -35.2809}},
	"Austria":              {"Vienna", intel.Coordinates{16.3738, 48.2082}},
	"Azerbaijan":           {"Baku", intel.Coordinates{49.8671, 40.4093}},
	"Bahrain":              {"Manama", intel.Coordinates{50.5860, 26.2285}},
	"Bangladesh":           {"Dhaka", intel.Coordinates{90.4125, 23.8103}},
	"Belarus":              {"Minsk", intel.Coordinates{27.5615, 53.9045}},
	"Belgium":              {"Brussels", intel.Coordinates{4.3517, 50.8503}},
	"Bolivia":              {"Sucre", intel.Coordinates{-65.2627, -19.0196}},
	"Bosnia and Herzegovina": {"Sarajevo", intel.Coordinates{18.4131, 43.8563}},
	"Brazil":               {"Brasilia", intel.Coordinates{-47.8825, -15.7942}},
	"Bulgaria":             {"Sofia", intel.Coordinates{23.3219, 42.6977}},
	"Burkina Faso":         {"Ouagadougou", intel.Coordinates{-1.5197, 12.3714}},
	"Cambodia":             {"Phnom Penh", intel.Coordinates{104.9282, 11.5564}},
	"Cameroon":             {"Yaounde", intel.Coordinates{11.5021, 3.8480}},
	"Canada":               {"Ottawa", intel.Coordinates{-75.6972, 45.4215}},
	"Chad":                 {"N'Djamena", intel.Coordinates{15.0444, 12.1348}},
	"Chile":                {"Santiago", intel.Coordinates{-70.6693, -33.4489}},
	"China":                {"Beijing", intel.Coordinates{116.4074, 39.9042}},
	"Colombia":             {"Bogota", intel.Coordinates{-74.0721, 4.7110}},
	"Croatia":              {"Zagreb", intel.Coordinates{15.9819, 45.8150}},
	"Cuba":                 {"Havana", intel.Coordinates{-82.3666, 23.1136}},
	"Cyprus":               {"Nicosia", intel.Coordinates{33.3823, 35.1856}},
	"Czech Republic":       {"Prague", intel.Coordinates{14.4378, 50.0755}},
	"Democratic Republic of the Congo": {"Kinshasa", intel.Coordinates{15.2663, -4.4419}},
	"Denmark":              {"Copenhagen", intel.Coordinates{12.5683, 55.6761}},
	"Djibouti":             {"Djibouti", intel.Coordinates{43.1456, 11.5721}},
	"Ecuador":              {"Quito", intel.Coordinates{-78.4678, -0.1807}},
	"Egypt":                {"Cairo", intel.Coordinates{31.2357, 30.0444}},
	"Eritrea":              {"Asmara", intel.Coordinates{38.9251, 15.3229}},
	"Estonia":              {"Tallinn", intel.Coordinates{24.7536, 59.4370}},
	"Ethiopia":             {"Addis Ababa", intel.Coordinates{38.7578, 8.9806}},
	"Finland":              {"Helsinki", intel.Coordinates{24.9384, 60.1699}},
	"France":               {"Paris", intel.Coordinates{2.3522, 48.8566}},
	"Georgia":              {"Tbilisi", intel.Coordinates{44.7930, 41.7151}},
	"Germany":              {"Berlin", intel.Coordinates{13.4050, 52.5200}},
	"Ghana":                {"Accra", intel.Coordinates{-0.1870, 5.6037}},
	"Greece":               {"Athens", intel.Coordinates{23.7275, 37.9838}},
	"Guatemala":            {"Guatemala City", intel.Coordinates{-90.5069, 14.6349}},
	"Haiti":                {"Port-au-Prince", intel.Coordinates{-72.3074, 18.5944}},
	"Hungary":              {"Budapest", intel.Coordinates{19.0402, 47.4979}},
	"Iceland":              {"Reykjavik", intel.Coordinates{-21.8174, 64.1265}},
	"India":                {"New Delhi", intel.Coordinates{77.2090, 28.6139}},
	"Indonesia":            {"Jakarta", intel.Coordinates{106.8456, -6.2088}},
	"Iran":                 {"Tehran", intel.Coordinates{51.3890, 35.6892}},
	"Iraq":                 {"Baghdad", intel.Coordinates{44.3615, 33.3128}},
	"Ireland":              {"Dublin", intel.Coordinates{-6.2603, 53.3498}},
	"Israel":               {"Jerusalem", intel.Coordinates{35.2137, 31.7683}},
	"Italy":                {"Rome", intel.Coordinates{12.4964, 41.9028}},
	"Japan":                {"Tokyo", intel.Coordinates{139.6917, 35.6895}},
	"Jordan":               {"Amman", intel.Coordinates{35.9106, 31.9539}},
	"Kazakhstan":           {"Astana", intel.Coordinates{71.4704, 51.1605}},
	"Kenya":                {"Nairobi", intel.Coordinates{36.8219, -1.2921}},
	"Kuwait":               {"Kuwait City", intel.Coordinates{47.9783, 29.3759}},
	"Kyrgyzstan":           {"Bishkek", intel.Coordinates{74.5698, 42.8746}},
	"Latvia":               {"Riga", intel.Coordinates{24.1052, 56.9496}},
	"Lebanon":              {"Beirut", intel.Coordinates{35.5018, 33.8938}},
	"Libya":                {"Tripoli", intel.Coordinates{13.1913, 32.8872}},
	"Lithuania":            {"Vilnius", intel.Coordinates{25.2797, 54.6872}},
	"Malaysia":             {"Kuala Lumpur", intel.Coordinates{101.6869, 3.1390}},
	"Mali":                 {"Bamako", intel.Coordinates{-8.0029, 12.6392}},
	"Mexico":               {"Mexico City", intel.Coordinates{-99.1332, 19.4326}},
	"Moldova":              {"Chisinau", intel.Coordinates{28.8638, 47.0105}},
	"Mongolia":             {"Ulaanbaatar", intel.Coordinates{106.9057, 47.8864}},
	"Morocco":              {"Rabat", intel.Coordinates{-6.8498, 34.0209}},
	"Mozambique":           {"Maputo", intel.Coordinates{32.5732, -25.9692}},
	"Myanmar":              {"Naypyidaw", intel.Coordinates{96.1297, 19.7633}},
	"Nepal":                {"Kathmandu", intel.Coordinates{85.3240, 27.7172}},
	"Netherlands":          {"Amsterdam", intel.Coordinates{4.9041, 52.3676}},
	"New Zealand":          {"Wellington", intel.Coordinates{174.7762, -41.2865}},
	"Nicaragua":            {"Managua", intel.Coordinates{-86.2514, 12.1150}},
	"Niger":                {"Niamey", intel.Coordinates{2.1254, 13.5116}},
	"Nigeria":              {"Abuja", intel.Coordinates{7.3986, 9.0765}},
	"North Korea":          {"Pyongyang", intel.Coordinates{125.7625, 39.0392}},
	"Norway":               {"Oslo", intel.Coordinates{10.7522, 59.9139}},
	"Oman":                 {"Muscat", intel.Coordinates{58.4059, 23.5880}},
	"Pakistan":             {"Islamabad", intel.Coordinates{73.0479, 33.6844}},
	"Palestine":            {"Ramallah", intel.Coordinates{35.2042, 31.9038}},
	"Panama":               {"Panama City", intel.Coordinates{-79.5199, 8.9824}},
	"Peru":                 {"Lima", intel.Coordinates{-77.0428, -12.0464}},
	"Philippines":          {"Manila", intel.Coordinates{120.9842, 14.5995}},
	"Poland":               {"Warsaw", intel.Coordinates{21.0122, 52.2297}},
	"Portugal":             {"Lisbon", intel.Coordinates{-9.1393, 38.7223}},
	"Qatar":                {"Doha", intel.Coordinates{51.5310, 25.2854}},
	"Romania":              {"Bucharest", intel.Coordinates{26.1025, 44.4268}},
	"Russia":               {"Moscow", intel.Coordinates{37.6173, 55.7558}},
	"Rwanda":               {"Kigali", intel.Coordinates{30.0619, -1.9441}},
	"Saudi Arabia":         {"Riyadh", intel.Coordinates{46.6753, 24.7136}},
	"Senegal":              {"Dakar", intel.Coordinates{-17.4677, 14.7167}},
	"Serbia":               {"Belgrade", intel.Coordinates{20.4489, 44.7866}},
	"Singapore":            {"Singapore", intel.Coordinates{103.8198, 1.3521}},
	"Slovakia":             {"Bratislava", intel.Coordinates{17.1077, 48.1486}},
	"Somalia":              {"Mogadishu", intel.Coordinates{45.3182, 2.0469}},
	"South Africa":         {"Pretoria", intel.Coordinates{28.2293, -25.7479}},
	"South Korea":          {"Seoul", intel.Coordinates{126.9780, 37.5665}},
	"South Sudan":          {"Juba", intel.Coordinates{31.5825, 4.8594}},
	"Spain":                {"Madrid", intel.Coordinates{-3.7038, 40.4168}},
	"Sri Lanka":            {"Colombo", intel.Coordinates{79.8612, 6.9271}},
	"Sudan":                {"Khartoum", intel.Coordinates{32.5599, 15.5007}},
	"Sweden":               {"Stockholm", intel.Coordinates{18.0686, 59.3293}},
	"Switzerland":          {"Bern", intel.Coordinates{7.4474, 46.9480}},
	"Syria":                {"Damascus", intel.Coordinates{36.2913, 33.5138}},
	"Taiwan":               {"Taipei", intel.Coordinates{121.5654, 25.0330}},
	"Tajikistan":           {"Dushanbe", intel.Coordinates{68.7870, 38.5598}},
	"Tanzania":             {"Dodoma", intel.Coordinates{35.7516, -6.1630}},
	"Thailand":             {"Bangkok", intel.Coordinates{100.5018, 13.7563}},
	"Tunisia":              {"Tunis", intel.Coordinates{10.1815, 36.8065}},
	"Turkey":               {"Ankara", intel.Coordinates{32.8597, 39.9334}},
	"Turkmenistan":         {"Ashgabat", intel.Coordinates{58.3261, 37.9601}},
	"Uganda":               {"Kampala", intel.Coordinates{32.5825, 0.3476}},
	"Ukraine":              {"Kyiv", intel.Coordinates{30.5234, 50.4501}},
	"United Arab Emirates": {"Abu Dhabi", intel.Coordinates{54.3773, 24.4539}},
	"United Kingdom":       {"London", intel.Coordinates{-0.1276, 51.5072}},
	"United States":        {"Washington, D.C.", intel.Coordinates{-77.0369, 38.9072}},
	"Uruguay":              {"Montevideo", intel.Coordinates{-56.1645, -34.9011}},
	"Uzbekistan":           {"Tashkent", intel.Coordinates{69.2401, 41.2995}},
	"Venezuela":            {"Caracas", intel.Coordinates{-66.9036, 10.4806}},
	"Vietnam":              {"Hanoi", intel.Coordinates{105.8342, 21.0278}},
	"Yemen":                {"Sanaa", intel.Coordinates{44.2066, 15.3694}},
	"Zambia":               {"Lusaka", intel.Coordinates{28.3228, -15.3875}},
	"Zimbabwe":             {"Harare", intel.Coordinates{31.0335, -17.8252}},
}

// extraCapitals covers regions that are not sovereign states.
var extraCapitals = map[string]Capital{
	"European Union": {"Brussels", intel.Coordinates{4.3517, 50.8503}},
	"EU":             {"Brussels", intel.Coordinates{4.3517, 50.8503}},
	"Gaza Strip":     {"Gaza City", intel.Coordinates{34.4667, 31.5167}},
	"Gaza":           {"Gaza City", intel.Coordinates{34.4667, 31.5167}},
}

// countryAliases maps normalized aliases to canonical names.
var countryAliases = map[string]string{
	"us":                       "United States",
	"u s":                      "United States",
	"u s a":                    "United States",
	"usa":                      "United States",
	"united states":            "United States",
	"united states of america": "United States",
	"u s of a":                 "United States",

	"uk":             "United Kingdom",
	"u k":            "United Kingdom",
	"united kingdom": "United Kingdom",
	"britain":        "United Kingdom",
	"great britain":  "United Kingdom",

	"russia":             "Russia",
	"russian federation": "Russia",

	"iran":                     "Iran",
	"islamic republic of iran": "Iran",

	"south korea":      "South Korea",
	"republic of korea": "South Korea",
	"north korea":      "North Korea",
	"dprk":             "North Korea",
	"democratic people s republic of korea": "North Korea",

	"prc":                        "China",
	"people s republic of china": "China",
	"mainland china":             "China",

	"eu":             "European Union",
	"european union": "European Union",
	"gaza":           "Gaza Strip",
	"gaza strip":     "Gaza Strip",
}
