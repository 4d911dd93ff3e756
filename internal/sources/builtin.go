package sources

// builtin lists the courts tracked out of the box: the seven high courts,
// their extended benches, the special court, and the district courts the
// detail endpoint serves. District identifiers end in "dc" and carry the
// numeric id the case detail endpoint expects in its path.
var builtin = []Court{
	// High courts.
	{ID: "patanhc", Name: "Patan High Court", Kind: KindHigh},
	{ID: "biratnagarhc", Name: "Biratnagar High Court", Kind: KindHigh},
	{ID: "janakpurhc", Name: "Janakpur High Court", Kind: KindHigh},
	{ID: "pokharahc", Name: "Pokhara High Court", Kind: KindHigh},
	{ID: "tulsipurhc", Name: "Tulsipur High Court", Kind: KindHigh},
	{ID: "surkhethc", Name: "Surkhet High Court", Kind: KindHigh},
	{ID: "dipayalhc", Name: "Dipayal High Court", Kind: KindHigh},
	// Extended benches, crawled as their own sources.
	{ID: "ilamhc", Name: "Biratnagar High Court, Ilam Bench", Kind: KindHigh},
	{ID: "dhankutahc", Name: "Biratnagar High Court, Dhankuta Bench", Kind: KindHigh},
	{ID: "okhaldhungahc", Name: "Biratnagar High Court, Okhaldhunga Bench", Kind: KindHigh},
	{ID: "rajbirajhc", Name: "Janakpur High Court, Rajbiraj Bench", Kind: KindHigh},
	{ID: "birgunjhc", Name: "Janakpur High Court, Birgunj Bench", Kind: KindHigh},
	{ID: "hetaudahc", Name: "Patan High Court, Hetauda Bench", Kind: KindHigh},
	{ID: "baglunghc", Name: "Pokhara High Court, Baglung Bench", Kind: KindHigh},
	{ID: "butwalhc", Name: "Tulsipur High Court, Butwal Bench", Kind: KindHigh},
	{ID: "nepalgunjhc", Name: "Tulsipur High Court, Nepalgunj Bench", Kind: KindHigh},
	{ID: "jumlahc", Name: "Surkhet High Court, Jumla Bench", Kind: KindHigh},
	{ID: "mahendranagarhc", Name: "Dipayal High Court, Mahendranagar Bench", Kind: KindHigh},

	// Special court.
	{ID: "specialcourt", Name: "Special Court", Kind: KindSpecial},

	// District courts (subset; the full list ships via the overrides file).
	{ID: "kathmandudc", Name: "Kathmandu District Court", Kind: KindDistrict, DistrictID: 27},
	{ID: "lalitpurdc", Name: "Lalitpur District Court", Kind: KindDistrict, DistrictID: 28},
	{ID: "bhaktapurdc", Name: "Bhaktapur District Court", Kind: KindDistrict, DistrictID: 29},
	{ID: "kaskidc", Name: "Kaski District Court", Kind: KindDistrict, DistrictID: 40},
	{ID: "morangdc", Name: "Morang District Court", Kind: KindDistrict, DistrictID: 6},
	{ID: "sunsaridc", Name: "Sunsari District Court", Kind: KindDistrict, DistrictID: 7},
	{ID: "jhapadc", Name: "Jhapa District Court", Kind: KindDistrict, DistrictID: 4},
	{ID: "chitwandc", Name: "Chitwan District Court", Kind: KindDistrict, DistrictID: 35},
	{ID: "rupandehidc", Name: "Rupandehi District Court", Kind: KindDistrict, DistrictID: 44},
	{ID: "bankedc", Name: "Banke District Court", Kind: KindDistrict, DistrictID: 57},
	{ID: "kailalidc", Name: "Kailali District Court", Kind: KindDistrict, DistrictID: 71},
	{ID: "parsadc", Name: "Parsa District Court", Kind: KindDistrict, DistrictID: 20},
	{ID: "dhanushadc", Name: "Dhanusha District Court", Kind: KindDistrict, DistrictID: 16},
	{ID: "makwanpurdc", Name: "Makwanpur District Court", Kind: KindDistrict, DistrictID: 34},
	{ID: "dangdc", Name: "Dang District Court", Kind: KindDistrict, DistrictID: 60},
}
