package speech

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

// builtinVoices lists Volcengine speakers known to work with the seed resource.
var builtinVoices = []voice.Info{
	{ID: "en_female_amy_jupiter_bigtts", Name: "Amy", Lang: "en-US"},
	{ID: "en_female_candice_emo_v2_mars_bigtts", Name: "Candice", Lang: "en-US"},
	{ID: "en_female_skye_emo_v2_mars_bigtts", Name: "Skye", Lang: "en-US"},
	{ID: "en_male_glen_emo_v2_mars_bigtts", Name: "Glen", Lang: "en-US"},
	{ID: "en_male_sylus_emo_v2_mars_bigtts", Name: "Sylus", Lang: "en-US"},
	{ID: "en_male_corey_emo_v2_mars_bigtts", Name: "Corey", Lang: "en-GB"},
	{ID: "zh_female_vv_uranus_bigtts", Name: "Vivi", Lang: "zh-CN"},
	{ID: "zh_male_M392_conversation_wvae_bigtts", Name: "M392", Lang: "zh-CN"},
}

// BuiltinVoices returns a copy of the default catalog.
func BuiltinVoices() []voice.Info {
	return append([]voice.Info(nil), builtinVoices...)
}

// ParseCatalog reads a comma separated list of "id|name|lang" entries.
// An empty name defaults to the id.
func ParseCatalog(raw string) ([]voice.Info, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var out []voice.Info
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("voice entry %d %q: want id|name|lang", i, entry)
		}
		id := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		lang := strings.TrimSpace(parts[2])
		if id == "" || lang == "" {
			return nil, fmt.Errorf("voice entry %d %q: id and lang are required", i, entry)
		}
		if name == "" {
			name = id
		}
		out = append(out, voice.Info{ID: id, Name: name, Lang: lang})
	}
	return out, nil
}
