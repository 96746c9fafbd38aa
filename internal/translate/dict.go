package translate

// Local dictionaries consulted before any network call.

var weatherTerms = map[string]string{
	"Sunny":                "晴天",
	"Clear":                "晴朗",
	"Partly cloudy":        "多云",
	"Cloudy":               "阴天",
	"Overcast":             "阴霾",
	"Light rain":           "小雨",
	"Moderate rain":        "中雨",
	"Heavy rain":           "大雨",
	"Light snow":           "小雪",
	"Heavy snow":           "大雪",
	"Thunderstorm":         "雷雨",
	"Light rain shower":    "阵雨",
	"Moderate rain shower": "中阵雨",
	"Heavy rain shower":    "大阵雨",
	"Mist":                 "薄雾",
	"Fog":                  "雾",
	"Freezing rain":        "冻雨",
	"Sleet":                "雨夹雪",
	"Drizzle":              "毛毛雨",
	"Light drizzle":        "轻雾雨",
	"Heavy drizzle":        "浓雾雨",
}

var locationNames = map[string]string{
	// Chinese cities as wttr.in romanizes them.
	"Beijing": "北京", "Shanghai": "上海", "Guangzhou": "广州", "Shenzhen": "深圳",
	"Hangzhou": "杭州", "Nanjing": "南京", "Wuhan": "武汉", "Chengdu": "成都",
	"Chongqing": "重庆", "Tianjin": "天津", "Xian": "西安", "Suzhou": "苏州",
	"Qingdao": "青岛", "Dalian": "大连", "Ningbo": "宁波", "Xiamen": "厦门",
	"Kunming": "昆明", "Changsha": "长沙", "Harbin": "哈尔滨", "Jinan": "济南",
	"Zhengzhou": "郑州", "Lanzhou": "兰州", "Urumqi": "乌鲁木齐", "Lhasa": "拉萨",

	// Frequent international results.
	"New York": "纽约", "Los Angeles": "洛杉矶", "Chicago": "芝加哥",
	"San Francisco": "旧金山", "Seattle": "西雅图", "Boston": "波士顿",
	"Toronto": "多伦多", "Vancouver": "温哥华", "Montreal": "蒙特利尔",
	"London": "伦敦", "Manchester": "曼彻斯特", "Edinburgh": "爱丁堡",
	"Tokyo": "东京", "Osaka": "大阪", "Kyoto": "京都", "Yokohama": "横滨",
	"Seoul": "首尔", "Busan": "釜山", "Singapore": "新加坡",
	"Bangkok": "曼谷", "Jakarta": "雅加达", "Mumbai": "孟买", "Delhi": "德里",
	"Paris": "巴黎", "Berlin": "柏林", "Madrid": "马德里", "Rome": "罗马",
	"Amsterdam": "阿姆斯特丹", "Moscow": "莫斯科",
	"Sydney": "悉尼", "Melbourne": "墨尔本", "Auckland": "奥克兰",

	// Countries and regions.
	"China": "中国", "United States": "美国", "United States of America": "美国",
	"USA": "美国", "US": "美国", "United Kingdom": "英国", "UK": "英国",
	"Canada": "加拿大", "Japan": "日本", "South Korea": "韩国", "Korea": "韩国",
	"Australia": "澳大利亚", "New Zealand": "新西兰", "France": "法国",
	"Germany": "德国", "Italy": "意大利", "Spain": "西班牙", "Russia": "俄罗斯",
	"Thailand": "泰国", "Vietnam": "越南", "India": "印度", "Malaysia": "马来西亚",
	"Singapore (country)": "新加坡",
}

// suffixRewrites is the last-resort rewriting applied when no dictionary or
// external service produced a translation.
var suffixRewrites = []struct{ suffix, repl string }{
	{" County", "县"},
	{" City", "市"},
	{" State", "州"},
	{" Province", "省"},
	{" District", "区"},
	{" Region", "地区"},
}
