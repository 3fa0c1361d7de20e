package render

// GLSL ES 3.00 sources for the two programs. Backends that do not run GLSL
// still receive them through CreateProgram and may only check them.

// PointVertexShader positions one point primitive per vertex.
const PointVertexShader = `#version 300 es
in vec2 a_position;
in float a_size;
in vec3 a_color;

uniform vec2 u_resolution;
uniform vec3 u_transform;
uniform float u_sizeMultiplier;

out vec3 v_color;

void main() {
	vec2 screen = (a_position + u_transform.xy) * u_transform.z;
	vec2 clip = (screen / u_resolution) * 2.0 - 1.0;
	gl_Position = vec4(clip.x, -clip.y, 0.0, 1.0);
	float scale = clamp(sqrt(u_transform.z), 0.25, 4.0);
	gl_PointSize = max(1.0, a_size * scale * u_sizeMultiplier);
	v_color = a_color;
}
`

// PointFragmentShader draws an antialiased disc.
const PointFragmentShader = `#version 300 es
precision mediump float;

in vec3 v_color;
out vec4 outColor;

void main() {
	vec2 c = gl_PointCoord * 2.0 - 1.0;
	float d = dot(c, c);
	if (d > 1.0) {
		discard;
	}
	float alpha = 1.0 - smoothstep(0.8, 1.0, d);
	outColor = vec4(v_color, alpha);
}
`

// LineVertexShader expands one instanced segment. a_t is 0 or 1 on the base
// geometry and selects the endpoint.
const LineVertexShader = `#version 300 es
in float a_t;
in vec2 a_start;
in vec2 a_end;

uniform vec2 u_resolution;
uniform vec3 u_transform;

void main() {
	vec2 pos = mix(a_start, a_end, a_t);
	vec2 screen = (pos + u_transform.xy) * u_transform.z;
	vec2 clip = (screen / u_resolution) * 2.0 - 1.0;
	gl_Position = vec4(clip.x, -clip.y, 0.0, 1.0);
}
`

// LineFragmentShader paints constant translucent white.
const LineFragmentShader = `#version 300 es
precision mediump float;

uniform bool u_isLine;
out vec4 outColor;

void main() {
	outColor = u_isLine ? vec4(1.0, 1.0, 1.0, 0.35) : vec4(0.0);
}
`

// LineAlpha is the opacity LineFragmentShader paints with.
const LineAlpha = 0.35
