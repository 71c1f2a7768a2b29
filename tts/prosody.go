/*
 * This file is part of Aloud (https://github.com/aloudlabs/aloud-tts).
 * Copyright (C) 2025 Aloud Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package tts

import (
	"fmt"
	"math"
)

// ProsodyOptions adjusts speech delivery for a single request.
type ProsodyOptions struct {
	// Rate is the speech rate multiplier; 1.0 means unmodified speed.
	Rate float64
}

// ratePercent converts a speech-rate multiplier into the signed percentage
// offset convention used by the edge backend (1.2 -> "+20%"). A multiplier
// whose offset rounds to zero means "no change"; ok is false and the caller
// omits the rate parameter entirely rather than sending "+0%".
func ratePercent(rate float64) (value string, ok bool) {
	pct := int(math.Round((rate - 1) * 100))
	if pct == 0 {
		return "", false
	}
	return fmt.Sprintf("%+d%%", pct), true
}
